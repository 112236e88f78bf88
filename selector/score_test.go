package selector

import (
	"math"
	"testing"
)

func almost(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestScoreTitle(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{"normal", "市场风险管理岗", 1.0},
		{"english", "Risk Manager", 1.0},
		{"empty", "", 0},
		{"single rune", "岗", 1.0 - penaltyMinLen},
		{"nav junk", "登录后查看更多职位", 1.0 - penaltyForbiddenWord},
		{"salary leaked in", "¥30-50K", 1.0 - penaltyForbiddenChar},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if q := Score(tt.text, FieldTitle); !almost(q, tt.want) {
				t.Errorf("Score(%q, title) = %.2f, want %.2f", tt.text, q, tt.want)
			}
		})
	}
}

func TestScoreSalary(t *testing.T) {
	tests := []struct {
		name string
		text string
		pass bool
	}{
		{"range K", "30-50K·15薪", true},
		{"range wan", "2-3万", true},
		{"qian", "8-9千", true},
		{"negotiable", "薪资面议", true},
		{"company text", "某某科技有限公司", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Score(tt.text, FieldSalary)
			if got := q > SuccessThreshold; got != tt.pass {
				t.Errorf("Score(%q, salary) = %.2f, pass = %v, want %v", tt.text, q, got, tt.pass)
			}
		})
	}
}

func TestScoreLocationRejectsSalaryText(t *testing.T) {
	if q := Score("30-50K", FieldLocation); q > SuccessThreshold {
		t.Errorf("salary text scored %.2f as location", q)
	}
	if q := Score("上海·浦东新区", FieldLocation); q <= SuccessThreshold {
		t.Errorf("real location scored %.2f", q)
	}
}

func TestScoreContainerNeedsSubstance(t *testing.T) {
	if q := Score("短文本", FieldContainer); !almost(q, 1.0-penaltyMinLen) {
		t.Errorf("short container text scored %.2f", q)
	}
	long := "高级风控经理 30-50K·15薪 上海·浦东新区 蚂蚁集团 5-10年 本科 风险管理 反欺诈"
	if q := Score(long, FieldContainer); q != 1.0 {
		t.Errorf("substantial container text scored %.2f", q)
	}
}

func TestScoreClampedToZero(t *testing.T) {
	// Pattern miss, required-char miss, and forbidden word stack past zero.
	if q := Score("经验不限待遇从优", FieldSalary); q != 0 {
		t.Errorf("Score = %.2f, want 0", q)
	}
}
