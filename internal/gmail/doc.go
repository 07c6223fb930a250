// Package gmail is a thin client for the Gmail REST endpoints mvgmail uses:
// message get and list, attachment download, and message send in both the
// raw media-upload and the JSON-wrapped form.
//
// Every call takes the account's email address, used as the userId path
// segment, and an access token obtained from google.TokenProvider. The client
// keeps no credentials of its own.
//
// Example usage:
//
//	c := gmail.NewClient(google.DefaultAPIBaseURL, gmail.Options{})
//	msg, err := c.GetMessage(ctx, gmail.GetMessageRequest{
//	    Email:       "jane@example.com",
//	    MessageID:   "18c1f0...",
//	    AccessToken: token,
//	})
//
// Upstream failures are returned as *APIError carrying the status code and
// the message from the error payload.
package gmail
