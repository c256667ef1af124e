package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"issuescout/internal/common"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, code, message string) {
	jsonResponse(w, common.HTTPStatus(code), errorResponse{Error: code, Message: message})
}

// writeError 按错误码输出 JSON 错误，服务端故障附带 details
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := common.CodeOf(err)
	status := common.HTTPStatus(code)

	resp := errorResponse{Error: code, Message: "internal error"}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		resp.Message = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		resp.Details = err.Error()
		log.Printf("[API] %s %s failed: %v", r.Method, r.URL.Path, err)
	}
	jsonResponse(w, status, resp)
}

// decodeJSON 解析请求体，超出大小限制或格式错误都算校验错误
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return common.WrapError(common.ErrCodeValidation, "request body too large", err)
		}
		return common.WrapError(common.ErrCodeValidation, "invalid JSON body", err)
	}
	return nil
}
