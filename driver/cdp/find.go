// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cdp

import (
	"encoding/json"
	"fmt"

	"github.com/ttbt-io/uiverify/harness/locator"
)

// findJS resolves a locator in the page. Only visible elements count; nth
// indexes into the visible matches. When scroll is set the element is scrolled
// into view before its box is measured.
const findJS = `(function(kind, value, name, exact, nth, scroll) {
	const norm = s => (s || '').replace(/\s+/g, ' ').trim();
	const match = (want, got) => exact
		? norm(got) === norm(want)
		: norm(got).toLowerCase().includes(norm(want).toLowerCase());
	const visible = el => {
		const r = el.getBoundingClientRect();
		if (r.width === 0 || r.height === 0) return false;
		const style = window.getComputedStyle(el);
		return style.display !== 'none' && style.visibility !== 'hidden' && style.opacity !== '0';
	};
	const implicitRole = el => {
		const tag = el.tagName.toLowerCase();
		const type = (el.getAttribute('type') || '').toLowerCase();
		switch (tag) {
		case 'button': return 'button';
		case 'a': return el.hasAttribute('href') ? 'link' : '';
		case 'h1': case 'h2': case 'h3': case 'h4': case 'h5': case 'h6': return 'heading';
		case 'img': return 'img';
		case 'textarea': return 'textbox';
		case 'select': return 'combobox';
		case 'canvas': return 'img';
		case 'input':
			if (['button', 'submit', 'reset', 'image'].includes(type)) return 'button';
			if (type === 'checkbox') return 'checkbox';
			if (type === 'radio') return 'radio';
			if (type === 'range') return 'slider';
			return 'textbox';
		}
		return '';
	};
	const roleOf = el => (el.getAttribute('role') || implicitRole(el)).toLowerCase();
	const accName = el => {
		const labelledBy = el.getAttribute('aria-labelledby');
		if (labelledBy) {
			const ref = document.getElementById(labelledBy);
			if (ref) return ref.innerText;
		}
		return el.getAttribute('aria-label') || el.getAttribute('alt') || el.getAttribute('title')
			|| el.innerText || el.value || '';
	};

	let candidates = [];
	if (kind === 'css') {
		candidates = Array.from(document.querySelectorAll(value));
	} else if (kind === 'role') {
		candidates = Array.from(document.querySelectorAll('*'))
			.filter(el => roleOf(el) === value && (!name || match(name, accName(el))));
	} else if (kind === 'text') {
		const all = document.body ? Array.from(document.body.querySelectorAll('*')) : [];
		candidates = all.filter(el => !['SCRIPT', 'STYLE', 'NOSCRIPT'].includes(el.tagName)
			&& match(value, el.innerText)
			&& !Array.from(el.children).some(c => match(value, c.innerText)));
	}
	const shown = candidates.filter(visible);
	const el = shown[nth];
	if (!el) return {found: false, count: candidates.length};
	if (scroll) el.scrollIntoView({block: 'center', inline: 'center'});
	const r = el.getBoundingClientRect();
	return {found: true, count: candidates.length, x: r.left, y: r.top, width: r.width, height: r.height};
})(%s, %s, %s, %t, %d, %t)`

type findResult struct {
	Found  bool    `json:"found"`
	Count  int     `json:"count"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func findExpression(loc locator.Locator, scroll bool) string {
	return fmt.Sprintf(findJS, jsString(string(loc.Kind)), jsString(loc.Value), jsString(loc.Name), loc.Exact, loc.Nth, scroll)
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
