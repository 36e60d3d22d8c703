package handlers

import (
	"strings"
	"testing"
)

// The welcome text teaches users how to call /fincard_set; it must show the
// same space-separated argument form the handler actually parses.
func TestWelcomeAdvertisesFinCardSetSyntax(t *testing.T) {
	t.Parallel()

	if !strings.Contains(welcomeTemplate, "/fincard_set <field> <value>") {
		t.Errorf("welcome text does not show the /fincard_set <field> <value> form:\n%s", welcomeTemplate)
	}
	if strings.Contains(welcomeTemplate, "<field>=<value>") {
		t.Error("welcome text shows a key=value form the handler does not accept")
	}
	if !strings.Contains(finCardUsage, "/fincard_set <field> <value>") {
		t.Errorf("usage text drifted from the <field> <value> form:\n%s", finCardUsage)
	}
}
