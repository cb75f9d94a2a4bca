package notion

import (
	"testing"

	"github.com/zaqqye/applytrack/internal/models"
)

func TestPageProperties(t *testing.T) {
	d, _ := models.ParseDate("2025-06-28")
	props := pageProperties(models.Application{
		Company:     "StartupXYZ",
		Role:        "Full Stack Engineer",
		Location:    "Remote",
		Status:      models.StatusInterview,
		AppliedDate: d,
		ResumeURL:   "https://example.com/cv.pdf",
	})

	title := props["Role"].Title
	if len(title) != 1 || title[0].Text.Content != "Full Stack Engineer" {
		t.Errorf("Role title = %+v", title)
	}
	if sel := props["Status"].Select; sel == nil || sel.Name != "Interview" {
		t.Errorf("Status select = %+v", sel)
	}
	if u := props["Resume"].URL; u == nil || *u != "https://example.com/cv.pdf" {
		t.Errorf("Resume url = %v", u)
	}
	if props["Applied"].Date == nil {
		t.Error("Applied date missing")
	}
	if _, ok := props["Notes"]; ok {
		t.Error("empty notes should be omitted")
	}
}
