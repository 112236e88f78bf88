package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/JJJJun123/boss-automation-sub000/session"
	"github.com/JJJJun123/boss-automation-sub000/snapshot"
)

func page(t *testing.T, raw, url string) *snapshot.Page {
	t.Helper()
	p, err := snapshot.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	p.SetURL(url)
	return p
}

func TestIsLoggedInIdentityMarker(t *testing.T) {
	p := page(t, `<html><body>
		<div class="user-nav"><div class="nav-figure"><img src="avatar.png"></div></div>
	</body></html>`, "https://www.zhipin.com/web/geek/job")
	if !session.IsLoggedIn(p) {
		t.Error("identity marker should mean logged in")
	}
}

func TestIsLoggedInLoginButton(t *testing.T) {
	p := page(t, `<html><body>
		<a class="header-login-btn" href="/web/user/?ka=header-login">登录</a>
	</body></html>`, "https://www.zhipin.com/web/geek/job")
	if session.IsLoggedIn(p) {
		t.Error("visible login button should mean logged out")
	}
}

func TestIsLoggedInLoginURL(t *testing.T) {
	p := page(t, `<html><body><div>请登录</div></body></html>`,
		"https://www.zhipin.com/web/user/login")
	if session.IsLoggedIn(p) {
		t.Error("login URL should mean logged out")
	}
}

func TestIsLoggedInNoSignalDefaultsTrue(t *testing.T) {
	p := page(t, `<html><body><div class="job-list-box"></div></body></html>`,
		"https://www.zhipin.com/web/geek/job")
	if !session.IsLoggedIn(p) {
		t.Error("no signal should default to logged in")
	}
}

func TestIsLoggedInHiddenLoginButtonIgnored(t *testing.T) {
	p := page(t, `<html><body>
		<a class="header-login-btn" style="display:none" href="#">登录</a>
	</body></html>`, "https://www.zhipin.com/web/geek/job")
	if !session.IsLoggedIn(p) {
		t.Error("hidden login button should not count")
	}
}

func TestWaitForLoginTimesOut(t *testing.T) {
	p := page(t, `<html><body><a class="header-login-btn" href="#">登录</a></body></html>`,
		"https://www.zhipin.com/web/geek/job")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := session.WaitForLogin(ctx, nil, p, time.Millisecond); err == nil {
		t.Error("expected timeout error")
	}
}

func TestWaitForLoginImmediateSuccess(t *testing.T) {
	p := page(t, `<html><body><div class="header-avatar"></div></body></html>`,
		"https://www.zhipin.com/web/geek/job")
	if err := session.WaitForLogin(context.Background(), nil, p, time.Second); err != nil {
		t.Errorf("WaitForLogin = %v", err)
	}
}
