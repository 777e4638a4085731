// Command editalmon watches a public-tender (edital) page, detects content
// changes and keyword mentions, and emails subscribers when the page changes.
//
// Run "editalmon serve" for the web service with the polling monitor,
// "editalmon check" for a one-shot inspection of the configured page, and
// "editalmon admin" to drive a running server's administrative API.
package main

import (
	"github.com/JakeFAU/edital-monitor/cmd"
)

func main() {
	cmd.Execute()
}
