package view

import "encoding/base64"

type Op string

const (
	OpHTML     Op = "html"
	OpShow     Op = "show"
	OpHide     Op = "hide"
	OpDisable  Op = "disable"
	OpEnable   Op = "enable"
	OpText     Op = "text"
	OpAlert    Op = "alert"
	OpDownload Op = "download"
)

// Patch is one change the browser applies to the page. Patches are streamed
// as newline-delimited JSON and applied in order. Target is an element id,
// or a CSS selector matching every element when All is set.
type Patch struct {
	Op       Op     `json:"op"`
	Target   string `json:"target,omitempty"`
	All      bool   `json:"all,omitempty"`
	HTML     string `json:"html,omitempty"`
	Text     string `json:"text,omitempty"`
	Filename string `json:"filename,omitempty"`
	Data     string `json:"data,omitempty"`
}

func Replace(target string, html string) Patch {
	return Patch{Op: OpHTML, Target: target, HTML: html}
}

func Download(filename string, data []byte) Patch {
	return Patch{Op: OpDownload, Filename: filename, Data: base64.StdEncoding.EncodeToString(data)}
}
