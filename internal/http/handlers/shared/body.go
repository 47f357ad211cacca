package shared

import (
	"errors"
	"io"
)

// ErrBodyTooLarge 请求体超过上限
var ErrBodyTooLarge = errors.New("request body too large")

// ReadLimitedBody 读取至多 limit 字节，超出时返回 ErrBodyTooLarge 而不是截断
func ReadLimitedBody(body io.Reader, limit int64) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ErrBodyTooLarge
	}
	return data, nil
}
