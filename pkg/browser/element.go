package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	errs "moodlescraper/pkg/errors"
)

type element struct {
	session *Session
	sel     *goquery.Selection
}

func find(s *Session, root *goquery.Selection, selector string) (Element, error) {
	match := root.Find(selector).First()
	if match.Length() == 0 {
		return nil, errs.NotFound(selector)
	}
	return &element{session: s, sel: match}, nil
}

func findAll(s *Session, root *goquery.Selection, selector string) []Element {
	var out []Element
	root.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		out = append(out, &element{session: s, sel: sel})
	})
	return out
}

// Text approximates rendered text: block text is split on newlines, runs of
// whitespace collapse to one space and blank lines are dropped.
func (e *element) Text() string {
	var lines []string
	for _, line := range strings.Split(e.sel.Text(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func (e *element) Attribute(name string) (string, bool) {
	v, ok := e.sel.Attr(name)
	if !ok {
		return "", false
	}
	switch name {
	case "href", "src":
		if v == "" || strings.HasPrefix(v, "#") || isScript(v) {
			return v, true
		}
		return e.session.resolve(v), true
	}
	return v, true
}

func (e *element) Find(selector string) (Element, error) {
	return find(e.session, e.sel, selector)
}

func (e *element) FindAll(selector string) []Element {
	return findAll(e.session, e.sel, selector)
}

// Click follows the element's link, or the first link inside it. Links that
// only act on the current page, and collapse toggles, flip aria-expanded and
// reveal the region named by aria-controls. Disabled and hidden elements are
// not interactable.
func (e *element) Click(ctx context.Context) error {
	if e.session.doc == nil || !e.attached() {
		return errs.NotInteractable(e.describe() + " (stale)")
	}
	if isDisabled(e.sel) || isHidden(e.sel) {
		return errs.NotInteractable(e.describe())
	}

	link := e.sel
	if !link.Is("a[href]") {
		link = e.sel.Find("a[href]").First()
	}

	href := ""
	if link.Length() > 0 {
		href = strings.TrimSpace(link.AttrOr("href", ""))
	}

	if href == "" || strings.HasPrefix(href, "#") || isScript(href) || isCollapseToggle(e.sel) {
		toggle := e.sel
		if _, ok := toggle.Attr("aria-expanded"); !ok && link.Length() > 0 {
			toggle = link
		}
		if _, ok := toggle.Attr("aria-expanded"); !ok {
			return errs.NotInteractable(e.describe() + " (no action)")
		}
		e.toggle(toggle)
		return nil
	}

	return e.session.Navigate(ctx, e.session.resolve(href))
}

func (e *element) toggle(sel *goquery.Selection) {
	expanded := sel.AttrOr("aria-expanded", "false") == "true"
	if expanded {
		sel.SetAttr("aria-expanded", "false")
	} else {
		sel.SetAttr("aria-expanded", "true")
	}

	for _, id := range strings.Fields(sel.AttrOr("aria-controls", "")) {
		region := e.session.doc.Find("#" + id)
		if expanded {
			region.RemoveClass("show").SetAttr("hidden", "")
		} else {
			region.AddClass("show").RemoveAttr("hidden")
		}
	}
}

// attached reports whether the element belongs to the current page
func (e *element) attached() bool {
	root := e.sel.Closest("html")
	return root.Length() > 0 && root.Get(0) == e.session.doc.Find("html").Get(0)
}

func (e *element) describe() string {
	desc := goquery.NodeName(e.sel)
	if id, ok := e.sel.Attr("id"); ok {
		desc += "#" + id
	}
	if class, ok := e.sel.Attr("class"); ok && class != "" {
		desc += "." + strings.Join(strings.Fields(class), ".")
	}
	return fmt.Sprintf("<%s>", desc)
}

func isDisabled(sel *goquery.Selection) bool {
	if _, ok := sel.Attr("disabled"); ok {
		return true
	}
	if sel.AttrOr("aria-disabled", "") == "true" {
		return true
	}
	return sel.HasClass("disabled")
}

func isHidden(sel *goquery.Selection) bool {
	hidden := false
	sel.AddSelection(sel.Parents()).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if _, ok := s.Attr("hidden"); ok {
			hidden = true
		} else if strings.Contains(strings.ReplaceAll(s.AttrOr("style", ""), " ", ""), "display:none") {
			hidden = true
		}
		return !hidden
	})
	return hidden
}

func isCollapseToggle(sel *goquery.Selection) bool {
	return sel.AttrOr("data-toggle", "") == "collapse" || sel.AttrOr("data-bs-toggle", "") == "collapse"
}

func isScript(href string) bool {
	return strings.HasPrefix(strings.ToLower(href), "javascript:")
}
