package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rickgao/protohackers/internal/wire"
)

// parseMessages parses arguments of the form I:<timestamp>:<price> and Q:<mintime>:<maxtime>.
func parseMessages(args []string) ([]wire.Message, error) {
	msgs := make([]wire.Message, 0, len(args))
	for _, arg := range args {
		parts := strings.Split(arg, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("%q: want TYPE:A:B", arg)
		}

		a, err := strconv.ParseInt(parts[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", arg, err)
		}
		b, err := strconv.ParseInt(parts[2], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", arg, err)
		}

		switch strings.ToUpper(parts[0]) {
		case "I":
			msgs = append(msgs, wire.Insert{Timestamp: int32(a), Price: int32(b)})
		case "Q":
			msgs = append(msgs, wire.Query{MinTime: int32(a), MaxTime: int32(b)})
		default:
			return nil, fmt.Errorf("%q: unknown message type %q", arg, parts[0])
		}
	}
	return msgs, nil
}
