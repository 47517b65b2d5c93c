package template

import (
	"github.com/valyala/fasttemplate"
	"io"
	"strconv"
)

type Data interface {
	Render(t *fasttemplate.Template) string
}

type Template string

// DataFunc resolves each tag by calling TagFunc; unknown tags render empty.
type DataFunc struct {
	TagFunc fasttemplate.TagFunc
}

func (d DataFunc) Render(t *fasttemplate.Template) string {
	return t.ExecuteFuncString(d.TagFunc)
}

const (
	startTag = "[["
	endTag   = "]]"
)

// ResponseTemplate is the reply sent for every message a client sends.
const ResponseTemplate Template = "OK: '[[text]]' (request #[[count]])\n"

// Response renders a template once per request. The template is parsed
// a single time and shared by all connections.
type Response struct {
	t *fasttemplate.Template
}

func NewResponse() *Response {
	return newResponse(ResponseTemplate)
}

func newResponse(tpl Template) *Response {
	return &Response{t: fasttemplate.New(string(tpl), startTag, endTag)}
}

func (r *Response) Format(text string, count int) string {
	return r.render(responseData(text, count))
}

func (r *Response) render(data Data) string {
	return data.Render(r.t)
}

func responseData(text string, count int) DataFunc {
	return DataFunc{TagFunc: func(w io.Writer, tag string) (int, error) {
		switch tag {
		case "text":
			return io.WriteString(w, text)
		case "count":
			return io.WriteString(w, strconv.Itoa(count))
		default:
			return 0, nil
		}
	}}
}
