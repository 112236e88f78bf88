package crawl

import (
	"testing"

	"github.com/JJJJun123/boss-automation-sub000/models"
)

func TestParseContainerTextFullCard(t *testing.T) {
	text := "高级风控经理\n上海·浦东新区\n30-50K·15薪\n蚂蚁科技集团有限公司\n5-10年 本科"
	rec := ParseContainerText(text)

	if rec.Title != "高级风控经理" {
		t.Errorf("title = %q", rec.Title)
	}
	if rec.Company != "蚂蚁科技集团有限公司" {
		t.Errorf("company = %q", rec.Company)
	}
	if rec.Salary != "30-50K" {
		t.Errorf("salary = %q", rec.Salary)
	}
	if rec.WorkLocation != "上海·浦东新区" {
		t.Errorf("location = %q", rec.WorkLocation)
	}
	if rec.SalaryMin != 30 || rec.SalaryMax != 50 {
		t.Errorf("salary bounds = %v-%v", rec.SalaryMin, rec.SalaryMax)
	}
	if rec.Source != "degraded" {
		t.Errorf("source = %q", rec.Source)
	}
	for _, f := range []string{models.FieldTitle, models.FieldCompany, models.FieldSalary, models.FieldLocation} {
		if rec.Confidence[f] != degradedConfidence {
			t.Errorf("confidence[%s] = %v", f, rec.Confidence[f])
		}
	}
}

func TestParseContainerTextPartial(t *testing.T) {
	rec := ParseContainerText("数据分析师\n经验不限 本科")
	if rec.Title != "数据分析师" {
		t.Errorf("title = %q", rec.Title)
	}
	if rec.Company != "" || rec.Salary != "" || rec.WorkLocation != "" {
		t.Errorf("unexpected recovered fields: %+v", rec)
	}
}

func TestParseContainerTextTitleCarriesLocation(t *testing.T) {
	rec := ParseContainerText("数据分析师-上海\n20-35K")
	if rec.Title != "数据分析师" {
		t.Errorf("title = %q", rec.Title)
	}
	if rec.WorkLocation != "上海" {
		t.Errorf("location = %q, want recovered 上海", rec.WorkLocation)
	}
}

func TestParseContainerTextTagRowNotTitle(t *testing.T) {
	rec := ParseContainerText("3-5年经验 硕士\n反欺诈算法工程师")
	if rec.Title != "反欺诈算法工程师" {
		t.Errorf("title = %q, tag row should not win", rec.Title)
	}
}
