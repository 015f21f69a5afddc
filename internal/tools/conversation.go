package tools

import (
	"fmt"
	"log/slog"
	"strings"
)

type GreetingResult struct {
	Status   string `json:"status"`
	Greeting string `json:"greeting"`
}

type FarewellResult struct {
	Status   string `json:"status"`
	Farewell string `json:"farewell"`
}

// SayHello greets the user by name, or generically when no name is given.
func SayHello(name string) GreetingResult {
	slog.Info("tool: say_hello", "name", name)

	greeting := "Hello there!"
	if name = strings.TrimSpace(name); name != "" {
		greeting = fmt.Sprintf("Hello, %s!", name)
	}
	return GreetingResult{Status: StatusSuccess, Greeting: greeting}
}

func SayGoodbye() FarewellResult {
	slog.Info("tool: say_goodbye")
	return FarewellResult{Status: StatusSuccess, Farewell: "Goodbye! Have a great day."}
}
