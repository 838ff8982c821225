// Package billing serves the plan engine as a JSON HTTP API.
//
// Routes, relative to where Handle is mounted:
//
//	GET  /plans                                          catalog, ?active=true|false
//	PUT  /sellers/{sellerID}                             register seller
//	POST /sellers/{sellerID}/activate                    {"template_id"} or {"subscription_id"}
//	POST /sellers/{sellerID}/switch                      same body, never creates
//	POST /sellers/{sellerID}/switch-valid
//	POST /sellers/{sellerID}/reactivate
//	POST /sellers/{sellerID}/default-plan
//	POST /sellers/{sellerID}/subscriptions/{id}/payment
//	GET  /sellers/{sellerID}/remaining
//	GET  /sellers/{sellerID}/usage
//	POST /sellers/{sellerID}/usage                       {"resource","delta"}
//	GET  /sellers/{sellerID}/usage/{resource}/capacity   ?count=N
//	GET  /sellers/{sellerID}/events                      text/event-stream
//
// Engine failures are answered with the engine's error kind as the error
// code; see ClassifyError for the status mapping.
package billing
