package browser

import (
	"fmt"
	"strconv"

	"github.com/Fennzo/CourtScrapper/internal/courts"
)

// clickByTextScript clicks the first link, button, or label whose text
// contains the given phrase.
func clickByTextScript(text string) string {
	return fmt.Sprintf(`(() => {
		const phrase = %s;
		const candidates = document.querySelectorAll("a, button, p, span, div");
		for (const el of candidates) {
			if ((el.textContent || "").includes(phrase)) {
				el.click();
				return true;
			}
		}
		return false;
	})()`, strconv.Quote(text))
}

// pickComboOptionScript clicks the "Attorney Name" entry in the open Kendo
// dropdown.
const pickComboOptionScript = `(() => {
	const selectors = [
		"div[role='option']",
		"li[role='option']",
		".k-list li",
	];
	for (const sel of selectors) {
		for (const el of document.querySelectorAll(sel)) {
			if ((el.textContent || "").includes("Attorney Name")) {
				el.click();
				return true;
			}
		}
	}
	return false;
})()`

// newestFileDateScript reads the file date cell of the first result row.
const newestFileDateScript = `(() => {
	const selectors = [
		"td.card-data.party-case-filedate[data-label='File Date']",
		"td[data-label='File Date']",
		"td.party-case-filedate",
		"td.card-data[data-label='File Date']",
	];
	for (const sel of selectors) {
		const el = document.querySelector(sel);
		if (el && el.textContent && el.textContent.trim()) {
			return el.textContent.trim();
		}
	}
	return "";
})()`

// setPageSizeScript drives the Kendo pager's hidden select and falls back to
// any page-size select on the page.
func setPageSizeScript(size int) string {
	return fmt.Sprintf(`(() => {
		const size = "%d";
		const apply = (sel) => {
			const opt = Array.from(sel.options).find(o => o.value === size || o.textContent.trim() === size);
			if (!opt) return false;
			sel.value = opt.value;
			sel.dispatchEvent(new Event("change", { bubbles: true }));
			return true;
		};
		const pager = document.querySelector("span.k-pager-sizes select[data-role='dropdownlist']");
		if (pager && apply(pager)) return true;
		for (const sel of document.querySelectorAll("select[name*='perpage'], select[name*='pagesize'], select[id*='pagesize']")) {
			if (apply(sel)) return true;
		}
		return false;
	})()`, size)
}

// caseRowsScript flattens visible result rows into index/caseNumber/text
// tuples. Rows without text are dropped.
const caseRowsScript = `(() => {
	const rowSelectors = [
		"tbody tr",
		"table tr:not(:first-child)",
		"tr",
	];
	let rows = [];
	for (const sel of rowSelectors) {
		rows = Array.from(document.querySelectorAll(sel));
		if (rows.length) break;
	}
	const out = [];
	rows.forEach((tr, i) => {
		const text = (tr.innerText || "").replace(/\s+/g, " ").trim();
		if (!text) return;
		const link = tr.querySelector("a.caseLink, a[data-caseid], a[href*='CaseDetail'], td:first-child a");
		out.push({
			index: i,
			caseNumber: link ? (link.textContent || "").trim() : "",
			text: text,
		});
	});
	return out;
})()`

// openCaseScript clicks the detail link for a row, preferring a case-number
// match and falling back to the row index.
func openCaseScript(row courts.CaseRow) string {
	return fmt.Sprintf(`(() => {
		const caseNumber = %s;
		const linkSel = "a.caseLink, a[data-caseid], a[href*='CaseDetail'], td:first-child a";
		if (caseNumber) {
			for (const link of document.querySelectorAll(linkSel)) {
				if ((link.textContent || "").trim() === caseNumber) {
					link.click();
					return true;
				}
			}
		}
		const rows = Array.from(document.querySelectorAll("tbody tr")).filter(
			tr => (tr.innerText || "").trim()
		);
		const tr = rows[%d];
		if (!tr) return false;
		const link = tr.querySelector(linkSel) || tr.querySelector("a");
		if (!link) return false;
		link.click();
		return true;
	})()`, strconv.Quote(row.CaseNumber), row.Index)
}
