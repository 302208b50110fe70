package display

import (
	"fmt"
	"os"

	"github.com/backmassage/scanmaster/internal/term"
)

// PrintBanner prints the ASCII art banner; colored when colors are enabled.
func PrintBanner() {
	if term.Enabled() {
		fmt.Fprint(os.Stdout, "\033[1;96m")
	}
	fmt.Fprint(os.Stdout, ` ____                  __  __           _
/ ___|  ___ __ _ _ __ |  \/  | __ _ ___| |_ ___ _ __
\___ \ / __/ _`+"`"+` | '_ \| |\/| |/ _`+"`"+` / __| __/ _ \ '__|
 ___) | (_| (_| | | | | |  | | (_| \__ \ ||  __/ |
|____/ \___\__,_|_| |_|_|  |_|\__,_|___/\__\___|_|
`)
	if term.Enabled() {
		fmt.Fprint(os.Stdout, "\033[0m")
	}
	fmt.Fprintln(os.Stdout)
}
