package banner

import (
	"sqlstress/internal/tui/styles"
)

const ascii = `
           _     _                       
  ___  __ _| |___| |_ _ __ ___  ___ ___ 
 / __|/ _' | / __| __| '__/ _ \/ __/ __|
 \__ \ (_| | \__ \ |_| | |  __/\__ \__ \
 |___/\__, |_|___/\__|_|  \___||___/___/
         |_|                            `

func GetString() string {
	style := styles.Text.
		Foreground(styles.ColorBanner).
		Bold(true)

	return "\n" + style.Render(ascii) + "\n" + styles.Subtle.Render("  SQL load testing against a pooled connection") + "\n"
}
