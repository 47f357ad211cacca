package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

const hmacSignaturePrefix = "sha256="

// WebhookGate 内部回调鉴权（静态密钥或 HMAC 签名二选一）
type WebhookGate struct {
	apiKey     string
	hmacSecret string
}

// NewWebhookGate 创建回调鉴权
func NewWebhookGate(apiKey, hmacSecret string) *WebhookGate {
	return &WebhookGate{
		apiKey:     strings.TrimSpace(apiKey),
		hmacSecret: strings.TrimSpace(hmacSecret),
	}
}

// Configured 是否配置了任一鉴权方式
func (g *WebhookGate) Configured() bool {
	return g != nil && (g.apiKey != "" || g.hmacSecret != "")
}

// Authorize 校验 x-api-key 或 x-hmac-signature（对原始请求体签名，hex 编码，可带 sha256= 前缀）
func (g *WebhookGate) Authorize(apiKeyHeader, signatureHeader string, rawBody []byte) error {
	if !g.Configured() {
		return ErrWebhookNotConfigured
	}
	apiKeyHeader = strings.TrimSpace(apiKeyHeader)
	if g.apiKey != "" && apiKeyHeader != "" &&
		subtle.ConstantTimeCompare([]byte(apiKeyHeader), []byte(g.apiKey)) == 1 {
		return nil
	}

	signature := strings.TrimSpace(signatureHeader)
	if g.hmacSecret != "" && signature != "" {
		signature = strings.TrimPrefix(strings.ToLower(signature), hmacSignaturePrefix)
		provided, err := hex.DecodeString(signature)
		if err != nil {
			return ErrWebhookSignatureInvalid
		}
		if hmac.Equal(provided, SignBody(g.hmacSecret, rawBody)) {
			return nil
		}
		return ErrWebhookSignatureInvalid
	}
	return ErrWebhookUnauthorized
}

// SignBody 计算 HMAC-SHA256
func SignBody(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}

// IdempotencyKey 幂等键：sha256(scope:externalID) 的 hex
func IdempotencyKey(scope, externalID string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(scope) + ":" + strings.TrimSpace(externalID)))
	return hex.EncodeToString(sum[:])
}

// VerifySharedSecret 常量时间比较共享密钥（定时任务入口）
func VerifySharedSecret(expected, provided string) bool {
	expected = strings.TrimSpace(expected)
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.TrimSpace(provided))) == 1
}
