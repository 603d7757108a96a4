package utils

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/campanio/backend/internal/apperr"
)

const maxBodyBytes = 1 << 20

var ErrInvalidBody = apperr.Validation("invalid request body")

// DecodeJSON 解析请求体到 dst，错误统一映射为 ErrInvalidBody
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrInvalidBody.Wrap(errors.New("empty body"))
		}
		return ErrInvalidBody.Wrap(err)
	}
	return nil
}
