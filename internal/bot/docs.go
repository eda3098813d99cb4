package bot

import (
	"fmt"
	"io"
	"strings"
)

// WriteParamsDoc prints every module's configuration keys:
//
//	# 'feeds' module parameters
//	- BOT_MODULE_FEEDS_ENABLED: enable module feeds (mandatory: false)
//	- FEED_0_NAME: Feed name, can be multiple (0..) (mandatory: false)
func WriteParamsDoc(w io.Writer, factories []Factory) error {
	var b strings.Builder
	for _, f := range factories {
		fmt.Fprintf(&b, "# '%s' module parameters\n", f.Name)
		fmt.Fprintf(&b, "- %s: enable module %s (mandatory: false)\n", EnableKey(f.Name), f.Name)
		seen := map[string]struct{}{}
		for _, p := range f.Params {
			if _, dup := seen[p.Name]; dup {
				continue
			}
			seen[p.Name] = struct{}{}
			fmt.Fprintf(&b, "- %s: %s (mandatory: %t)\n", p.Name, p.Description, p.Mandatory)
		}
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}
