package response

// 业务错误码直接沿用 HTTP 语义；HTTP 状态码始终是 200
const (
	CodeOK           = 0
	CodeBadRequest   = 400
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeNotFound     = 404
	CodeServerError  = 500
	CodeBusy         = 503
	CodeTimeout      = 504
)

var CodeMsgMap = map[int]string{
	CodeOK:           "OK",
	CodeBadRequest:   "Bad Request",
	CodeUnauthorized: "Unauthorized",
	CodeForbidden:    "Forbidden",
	CodeNotFound:     "Not Found",
	CodeServerError:  "Internal Server Error",
	CodeBusy:         "Service Unavailable",
	CodeTimeout:      "Gateway Timeout",
}
