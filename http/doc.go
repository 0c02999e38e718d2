// Package http provides the JSON response helpers used by the diagnostics
// endpoints.
//
// Response wraps http.ResponseWriter. Payloads go in a {"data": ...}
// envelope and errors in {"message": ...}.
//
//	res := gohttp.NewResponse(w)
//
//	res.JSON(200, data)           // raw JSON with status
//	res.Success(data)             // 200 {"data": ...}
//
//	res.Error(409, "conflict")    // {"message": "conflict"}
//	res.NotFound()                // 404 {"message": "Not found."}
//	res.MethodNotAllowed()        // 405 {"message": "Method not allowed."}
//	res.Unavailable()             // 503 {"message": "Service unavailable."}
//	res.ServerError()             // 500 {"message": "Server Error."}
package http
