// Package handler contains the HTTP request handlers.
//
// HANDLER RESPONSIBILITIES:
//  1. Parse the incoming request (path params, query, JSON body)
//  2. Call the service layer or the user's tracker session
//  3. Write the response through writeJSON / writeError
//
// Handlers hold no business rules. Validation that needs only the request
// (day is a number, body is JSON) happens here; everything else is the
// service's job.
package handler
