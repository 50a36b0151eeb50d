// meansclient sends Means to an End frames to a server and prints each mean.
// Usage: go run ./cmd/meansclient -addr localhost:54000 I:12345:101 I:12346:102 Q:12288:16384
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/rickgao/protohackers/internal/wire"
)

func main() {
	addr := flag.String("addr", "localhost:54000", "server address")
	timeout := flag.Duration("timeout", 10*time.Second, "overall deadline")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	msgs, err := parseMessages(flag.Args())
	if err != nil {
		logger.Error("invalid arguments", "error", err)
		os.Exit(2)
	}

	conn, err := net.DialTimeout("tcp", *addr, *timeout)
	if err != nil {
		logger.Error("failed to connect", "addr", *addr, "error", err)
		os.Exit(1)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(*timeout))

	for _, m := range msgs {
		if err := wire.WriteMessage(conn, m); err != nil {
			logger.Error("send failed", "message", m, "error", err)
			os.Exit(1)
		}

		q, ok := m.(wire.Query)
		if !ok {
			continue
		}
		mean, err := wire.ReadMean(conn)
		if err != nil {
			logger.Error("read failed", "message", m, "error", err)
			os.Exit(1)
		}
		fmt.Printf("mean[%d, %d] = %d\n", q.MinTime, q.MaxTime, mean)
	}
}
