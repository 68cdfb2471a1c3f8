/*
 * Copyright 2024 caiflower Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package mimetype supplies the extension->content-type table and the
// compressible-type set the handler contract (a file-serving handler
// outside this module's scope) needs. Only the configuration table is
// this module's concern; the handler itself is not.
package mimetype

import "strings"

var byExtension = map[string]string{
	".html": "text/html; charset=utf-8",
	".htm":  "text/html; charset=utf-8",
	".css":  "text/css; charset=utf-8",
	".js":   "application/javascript; charset=utf-8",
	".mjs":  "application/javascript; charset=utf-8",
	".json": "application/json; charset=utf-8",
	".xml":  "application/xml; charset=utf-8",
	".txt":  "text/plain; charset=utf-8",
	".svg":  "image/svg+xml",
	".wasm": "application/wasm",
	".woff": "font/woff",
	".woff2": "font/woff2",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".ico":  "image/x-icon",
	".pdf":  "application/pdf",
}

// compressible mirrors the same key set for html/css/js/json/xml/text/svg/
// wasm/woff, per spec.md §6.
var compressible = map[string]bool{
	".html":  true,
	".htm":   true,
	".css":   true,
	".js":    true,
	".mjs":   true,
	".json":  true,
	".xml":   true,
	".txt":   true,
	".svg":   true,
	".wasm":  true,
	".woff":  true,
	".woff2": true,
}

// ForExtension returns the registered content-type for a file extension
// (leading dot, case-insensitive) and whether one was found.
func ForExtension(ext string) (string, bool) {
	v, ok := byExtension[strings.ToLower(ext)]
	return v, ok
}

// IsCompressible reports whether the given extension's default content
// type is worth auto-compressing.
func IsCompressible(ext string) bool {
	return compressible[strings.ToLower(ext)]
}

// Default is the fallback content-type for unknown extensions.
const Default = "application/octet-stream"
