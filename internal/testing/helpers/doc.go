// Package helpers provides test utility functions for the tour booking API.
//
//	jwt := helpers.NewJWTHelper(t)
//	resp := helpers.NewRequest(t, http.MethodGet, "/api/v1/users/me").
//	    WithAuth(jwt, user).
//	    Do(router)
//	helpers.AssertStatus(t, resp, http.StatusOK)
package helpers
