// visagate-cli is a line-oriented SCPI console for a running visagate bridge.
//
// Without arguments it starts an interactive prompt; each entered line is
// sent as one command and the reply is printed raw, acknowledgements
// included. With arguments the remainder of the command line is sent as a
// single command:
//
//	$ visagate-cli -addr 192.168.1.10:12345 *IDN?
//	TEKTRONIX,MSO54,C012345,1.20.6
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/visagate/visagate/bridge"
)

func main() {
	addr := flag.String("addr", fmt.Sprintf("127.0.0.1:%d", bridge.DefaultPort), "bridge server address")
	flag.Parse()

	client := bridge.NewClient(*addr)

	if flag.NArg() > 0 {
		// one-shot mode: the remaining arguments form a single command
		if err := roundTrip(os.Stdout, client, strings.Join(flag.Args(), " ")); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		return
	}

	if err := repl(client); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func repl(client *bridge.Client) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "scpi> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}

			return err
		}

		cmd := strings.TrimSpace(line)
		if cmd == "" {
			continue
		}
		if cmd == "exit" || cmd == "quit" {
			return nil
		}

		if err := roundTrip(rl.Stdout(), client, cmd); err != nil {
			fmt.Fprintln(rl.Stderr(), err)
		}
	}
}

// roundTrip sends one command and prints the server's reply, which is the
// instrument payload for queries and the acknowledgement text otherwise.
func roundTrip(w io.Writer, client *bridge.Client, cmd string) error {
	reply, err := client.Query(cmd)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, reply)

	return nil
}
