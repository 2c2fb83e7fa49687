package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/AndrewArto/laundropi-control-sub000/cmd/console/ui"

	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	baseURL := flag.String("hub", "http://127.0.0.1:9300", "hub base URL")
	flag.Parse()

	p := tea.NewProgram(ui.NewRootModel(*baseURL), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "console failed: %v\n", err)
		os.Exit(1)
	}
}
