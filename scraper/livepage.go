package scraper

import (
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"

	"github.com/JJJJun123/boss-automation-sub000/selector"
)

// livePage adapts a rod page to the crawl.LivePage surface.
type livePage struct {
	p *rod.Page
}

func (l *livePage) QueryAll(sel string) ([]selector.Element, error) {
	els, err := l.p.Elements(sel)
	if err != nil {
		return nil, err
	}
	out := make([]selector.Element, len(els))
	for i, el := range els {
		out[i] = &liveElement{el: el}
	}
	return out, nil
}

func (l *livePage) URL() string {
	info, err := l.p.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (l *livePage) WaitVisible(sel string, timeout time.Duration) error {
	el, err := l.p.Timeout(timeout).Element(sel)
	if err != nil {
		return err
	}
	return el.WaitVisible()
}

// WaitHidden treats an absent element as hidden.
func (l *livePage) WaitHidden(sel string, timeout time.Duration) error {
	el, err := l.p.Timeout(timeout).Element(sel)
	if err != nil {
		return nil
	}
	return el.WaitInvisible()
}

func (l *livePage) ScrollTo(y int) error {
	_, err := l.p.Eval(`(y) => window.scrollTo(0, y)`, y)
	return err
}

func (l *livePage) ScrollBottom() error {
	_, err := l.p.Eval(`() => window.scrollTo(0, document.body ? document.body.scrollHeight : 0)`)
	return err
}

func (l *livePage) PressEnd() error {
	return l.p.Keyboard.Press(input.End)
}

func (l *livePage) Click(sel string) error {
	el, err := l.p.Element(sel)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (l *livePage) Height() (int, error) {
	res, err := l.p.Eval(`() => document.body ? Math.max(document.body.scrollHeight, document.documentElement.scrollHeight) : 0`)
	if err != nil {
		return 0, err
	}
	return res.Value.Int(), nil
}

// liveElement adapts a rod element to selector.Element.
type liveElement struct {
	el *rod.Element
}

func (e *liveElement) QueryAll(sel string) ([]selector.Element, error) {
	els, err := e.el.Elements(sel)
	if err != nil {
		return nil, err
	}
	out := make([]selector.Element, len(els))
	for i, el := range els {
		out[i] = &liveElement{el: el}
	}
	return out, nil
}

func (e *liveElement) Text() (string, error) {
	return e.el.Text()
}

func (e *liveElement) Attr(name string) (string, error) {
	v, err := e.el.Attribute(name)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", nil
	}
	return *v, nil
}

func (e *liveElement) Visible() (bool, error) {
	return e.el.Visible()
}

func (e *liveElement) Box() (float64, float64, bool) {
	shape, err := e.el.Shape()
	if err != nil || len(shape.Quads) == 0 {
		return 0, 0, false
	}
	box := shape.Box()
	return box.X, box.Y, true
}
