package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"chorddht/internal/pool"
	"chorddht/internal/transport"

	"github.com/peterh/liner"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:4000", "address of a DHT node to use as entry point")
	timeout := flag.Duration("timeout", 5*time.Second, "request timeout")
	flag.Parse()

	p := pool.New()
	defer p.Close()

	currentAddr := *addr
	fmt.Printf("chord interactive client. Connected to %s\n", currentAddr)
	fmt.Println("Available commands: put/get/getstore/getsize/getrt/use/exit")

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	for {
		input, err := line.Prompt(fmt.Sprintf("chord[%s]> ", currentAddr))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				fmt.Println("Aborted")
				continue
			}
			break
		}
		line.AppendHistory(input)

		args := strings.Fields(strings.TrimSpace(input))
		if len(args) == 0 {
			continue
		}
		cmd := args[0]

		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		runCommand(ctx, p, currentAddr, cmd, args, &currentAddr)
		cancel()

		if cmd == "exit" || cmd == "quit" {
			return
		}
	}
}

func runCommand(ctx context.Context, p *pool.Pool, addr string, cmd string, args []string, currentAddr *string) {
	start := time.Now()
	switch cmd {
	case "put":
		if len(args) < 3 {
			fmt.Println("Usage: put <key> <value> [ttl] [replication]")
			return
		}
		key, value := args[1], args[2]
		var ttl time.Duration
		if len(args) > 3 {
			d, err := time.ParseDuration(args[3])
			if err != nil {
				fmt.Printf("invalid ttl %q: %v\n", args[3], err)
				return
			}
			ttl = d
		}
		replication := int32(3)
		if len(args) > 4 {
			r, err := strconv.Atoi(args[4])
			if err != nil || r < 1 {
				fmt.Printf("invalid replication %q\n", args[4])
				return
			}
			replication = int32(r)
		}
		err := p.Do(ctx, addr, func(c *transport.Client) error {
			return c.Put(ctx, &transport.PutRequest{Key: []byte(key), Value: value, Ttl: int64(ttl), Replication: replication})
		})
		report("put", err, time.Since(start))

	case "get":
		if len(args) < 2 {
			fmt.Println("Usage: get <key>")
			return
		}
		key := args[1]
		var reply *transport.GetReply
		err := p.Do(ctx, addr, func(c *transport.Client) error {
			r, err := c.Get(ctx, []byte(key))
			reply = r
			return err
		})
		if err != nil {
			fmt.Printf("get failed: %v | latency=%s\n", err, time.Since(start))
			return
		}
		switch reply.Status {
		case transport.StatusOK:
			fmt.Printf("get succeeded (key=%s, value=%s) | latency=%s\n", key, reply.Value, time.Since(start))
		case transport.StatusExpired:
			fmt.Printf("key expired: %s | latency=%s\n", key, time.Since(start))
		default:
			fmt.Printf("key not found: %s | latency=%s\n", key, time.Since(start))
		}

	case "getstore":
		var reply *transport.KvStoreDataReply
		err := p.Do(ctx, addr, func(c *transport.Client) error {
			r, err := c.GetKvStoreData(ctx)
			reply = r
			return err
		})
		if err != nil {
			fmt.Printf("getstore failed: %v | latency=%s\n", err, time.Since(start))
			return
		}
		fmt.Printf("stored pairs (count=%d) | latency=%s\n", len(reply.Pairs), time.Since(start))
		for _, kv := range reply.Pairs {
			fmt.Printf("  - key=%x value=%s\n", kv.Key, kv.Value)
		}

	case "getsize":
		var reply *transport.KvStoreSizeReply
		err := p.Do(ctx, addr, func(c *transport.Client) error {
			r, err := c.GetKvStoreSize(ctx)
			reply = r
			return err
		})
		if err != nil {
			fmt.Printf("getsize failed: %v | latency=%s\n", err, time.Since(start))
			return
		}
		fmt.Printf("store size: %d | latency=%s\n", reply.Size, time.Since(start))

	case "getrt":
		var reply *transport.NodeSummary
		err := p.Do(ctx, addr, func(c *transport.Client) error {
			r, err := c.GetNodeSummary(ctx)
			reply = r
			return err
		})
		if err != nil {
			fmt.Printf("getrt failed: %v | latency=%s\n", err, time.Since(start))
			return
		}
		fmt.Println("node summary:")
		fmt.Printf("  self: %x (%s)\n", reply.ID, reply.Addr)
		if reply.HasPredecessor {
			fmt.Printf("  predecessor: %s\n", reply.PredecessorAddr)
		} else {
			fmt.Println("  predecessor: <none>")
		}
		fmt.Println("  successors:")
		for i, s := range reply.Successors {
			fmt.Printf("    [%d] %x (%s)\n", i, s.ID, s.Addr)
		}
		fmt.Printf("  non-empty fingers: %d\n", reply.NonEmptyFingers)
		fmt.Printf("latency: %s\n", time.Since(start))

	case "use":
		if len(args) < 2 {
			fmt.Println("Usage: use <addr>")
			return
		}
		*currentAddr = args[1]
		fmt.Printf("switched connection to %s\n", *currentAddr)

	case "exit", "quit":
		fmt.Println("Bye!")

	default:
		fmt.Printf("unknown command: %s\n", cmd)
	}
}

func report(op string, err error, delay time.Duration) {
	if err != nil {
		fmt.Printf("%s failed: %v | latency=%s\n", op, err, delay)
		return
	}
	fmt.Printf("%s succeeded | latency=%s\n", op, delay)
}
