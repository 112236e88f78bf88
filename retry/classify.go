package retry

import (
	"context"
	"errors"
	"strings"

	"github.com/JJJJun123/boss-automation-sub000/models"
)

// Kind is a coarse error category used to pick retry behavior.
type Kind string

const (
	KindNetwork         Kind = "network"
	KindTimeout         Kind = "timeout"
	KindAuth            Kind = "auth"
	KindCaptcha         Kind = "captcha"
	KindRateLimit       Kind = "rate_limit"
	KindParsing         Kind = "parsing"
	KindPageLoad        Kind = "page_load"
	KindElementNotFound Kind = "element_not_found"
	KindBrowser         Kind = "browser"
	KindUnknown         Kind = "unknown"
)

// codeKinds maps CrawlError codes directly to kinds, skipping the
// keyword scan for errors our own code produced.
var codeKinds = map[string]Kind{
	models.ErrCodeTimeout:         KindTimeout,
	models.ErrCodeNavigation:      KindPageLoad,
	models.ErrCodeNetwork:         KindNetwork,
	models.ErrCodeBrowserCrash:    KindBrowser,
	models.ErrCodeAuthRequired:    KindAuth,
	models.ErrCodeVerification:    KindCaptcha,
	models.ErrCodeParsing:         KindParsing,
	models.ErrCodeElementNotFound: KindElementNotFound,
	models.ErrCodeRateLimited:     KindRateLimit,
}

// keywordKinds is scanned in order; the first group with a matching
// keyword wins. Order matters: "timeout" must be checked before the
// generic network group because timeout messages often mention
// connections too.
var keywordKinds = []struct {
	kind     Kind
	keywords []string
}{
	{KindCaptcha, []string{"captcha", "验证码", "verify", "verification", "安全验证", "滑块"}},
	{KindAuth, []string{"login", "登录", "unauthorized", "forbidden", "认证", "权限"}},
	{KindRateLimit, []string{"rate limit", "too many requests", "429", "频繁", "限流"}},
	{KindTimeout, []string{"timeout", "timed out", "deadline exceeded", "超时"}},
	{KindNetwork, []string{"network", "connection", "refused", "reset", "dns", "unreachable", "网络"}},
	{KindPageLoad, []string{"navigation", "page load", "页面加载", "net::err"}},
	{KindElementNotFound, []string{"element not found", "no such element", "cannot find", "元素"}},
	{KindParsing, []string{"parse", "parsing", "unmarshal", "decode", "解析"}},
	{KindBrowser, []string{"browser", "chrome", "chromium", "target closed", "session closed", "websocket"}},
}

// Classify buckets an error into a Kind. Typed CrawlErrors map by
// code; everything else falls back to keyword matching on the full
// error chain's message.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var ce *models.CrawlError
	if errors.As(err, &ce) {
		if k, ok := codeKinds[ce.Code]; ok {
			return k
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	msg := strings.ToLower(err.Error())
	for _, group := range keywordKinds {
		for _, kw := range group.keywords {
			if strings.Contains(msg, kw) {
				return group.kind
			}
		}
	}
	return KindUnknown
}
