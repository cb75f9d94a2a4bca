// Package notion mirrors newly created applications into a Notion database.
package notion

import (
	"context"
	"time"

	gnt "github.com/dstotijn/go-notion"

	"github.com/zaqqye/applytrack/internal/models"
)

// Expected database columns: Role (title), Company, Location, Notes (text),
// Status (select), Applied (date), Resume (url).
type Client struct {
	api        *gnt.Client
	databaseID string
}

func New(token, databaseID string) *Client {
	return &Client{
		api:        gnt.NewClient(token),
		databaseID: databaseID,
	}
}

// Ping runs a one-row query to check the token and database id.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.api.QueryDatabase(ctx, c.databaseID, &gnt.DatabaseQuery{
		PageSize: 1,
	})
	return err
}

// CreateApplicationPage adds one row and returns the Notion page id.
func (c *Client) CreateApplicationPage(ctx context.Context, app models.Application) (string, error) {
	props := pageProperties(app)
	page, err := c.api.CreatePage(ctx, gnt.CreatePageParams{
		ParentType:             gnt.ParentTypeDatabase,
		ParentID:               c.databaseID,
		DatabasePageProperties: &props,
	})
	if err != nil {
		return "", err
	}
	return page.ID, nil
}

func richText(s string) []gnt.RichText {
	if s == "" {
		return nil
	}
	return []gnt.RichText{{Text: &gnt.Text{Content: s}}}
}

func pageProperties(app models.Application) gnt.DatabasePageProperties {
	props := gnt.DatabasePageProperties{
		"Role": gnt.DatabasePageProperty{Title: richText(app.Role)},
	}
	if app.Company != "" {
		props["Company"] = gnt.DatabasePageProperty{RichText: richText(app.Company)}
	}
	if app.Location != "" {
		props["Location"] = gnt.DatabasePageProperty{RichText: richText(app.Location)}
	}
	if app.Status != "" {
		props["Status"] = gnt.DatabasePageProperty{Select: &gnt.SelectOptions{Name: string(app.Status)}}
	}
	if applied := time.Time(app.AppliedDate); !applied.IsZero() {
		props["Applied"] = gnt.DatabasePageProperty{
			Date: &gnt.Date{Start: gnt.NewDateTime(applied, false)},
		}
	}
	if app.ResumeURL != "" {
		u := app.ResumeURL
		props["Resume"] = gnt.DatabasePageProperty{URL: &u}
	}
	if app.Notes != "" {
		props["Notes"] = gnt.DatabasePageProperty{RichText: richText(app.Notes)}
	}
	return props
}
