package utils

import (
	"encoding/json"
	"net/http"

	"github.com/campanio/backend/internal/apperr"
)

// RespondJSON 发送JSON响应
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		currentLogger().Warn("failed to encode response", "status", status, "error", err)
	}
}

// RespondError 发送错误响应
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, map[string]string{"error": message})
}

// RespondMessage 发送 {"message": ...} 响应
func RespondMessage(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, map[string]string{"message": message})
}

// RespondAppError 按错误类型映射状态码；未分类错误不泄露内部细节
func RespondAppError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindConflict {
		RespondJSON(w, kind.Status(), map[string]any{
			"message":      apperr.Message(err),
			"alreadySaved": true,
		})
		return
	}
	if kind == apperr.KindInternal {
		currentLogger().Error("internal error", "error", err)
	}
	RespondError(w, kind.Status(), apperr.Message(err))
}
