package web

import "embed"

// StaticFS holds the embedded dashboard stylesheet.
//
//go:embed static/*
var StaticFS embed.FS
