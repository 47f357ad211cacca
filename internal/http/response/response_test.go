package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body failed: %v", err)
	}
	return body
}

func TestErrorEnvelopeCarriesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set("request_id", "req-1")

	Forbidden(c, "无权限访问")
	if w.Code != http.StatusOK {
		t.Fatalf("envelope errors use http 200, got %d", w.Code)
	}
	body := decodeEnvelope(t, w)
	if body["status_code"] != float64(CodeForbidden) || body["msg"] != "无权限访问" {
		t.Fatalf("unexpected envelope %v", body)
	}
	data, ok := body["data"].(map[string]interface{})
	if !ok || data["request_id"] != "req-1" {
		t.Fatalf("expected request_id in data, got %v", body["data"])
	}

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	Unauthorized(c, "未授权")
	if body := decodeEnvelope(t, w); body["data"] != nil {
		t.Fatalf("data should be null without request id, got %v", body["data"])
	}
}

func TestSuccessWithPage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	SuccessWithPage(c, []int{1, 2}, Pagination{Page: 1, PageSize: 2, Total: 5, TotalPage: 3})
	body := decodeEnvelope(t, w)
	if body["status_code"] != float64(CodeOK) {
		t.Fatalf("unexpected envelope %v", body)
	}
	pagination := body["pagination"].(map[string]interface{})
	if pagination["total"] != float64(5) || pagination["total_page"] != float64(3) {
		t.Fatalf("unexpected pagination %v", pagination)
	}
}
