// Command actordemo spawns a pair of local actors on one node, runs a
// request/response between them, then enables networking over the
// loopback transport and publishes the node. It does not connect to a
// second node, link actors, or spawn remotely.
package main

import (
	"context"
	"encoding"
	"fmt"
	"log"
	"time"

	"github.com/phuhao00/actorcore/actor"
	"github.com/phuhao00/actorcore/config"
	"github.com/phuhao00/actorcore/wire"

	actorcore "github.com/phuhao00/actorcore"
)

type greeting struct {
	Text string
}

func (g greeting) MarshalBinary() ([]byte, error) {
	return []byte(g.Text), nil
}

func (g *greeting) UnmarshalBinary(data []byte) error {
	g.Text = string(data)
	return nil
}

func pong(ctx *actor.Context) *actor.Behavior {
	return actor.NewBehavior(
		func(msg actor.Message) bool {
			g, ok := msg.(greeting)
			if !ok {
				return false
			}
			fmt.Printf("pong received: %s\n", g.Text)
			ctx.Sender().Enqueue(ctx.Self(), ctx.Sender(), ctx.MessageID().ResponseID().MarkAnswered(), greeting{Text: "pong"}, nil)
			return true
		},
	)
}

func main() {
	cfg, err := config.GetRuntimeConfig()
	if err != nil {
		log.Printf("no config/runtime.yaml found, falling back to in-process defaults: %v", err)
		cfg = &config.RuntimeConfig{Node: config.NodeConfig{SchedulerWorkers: 2, Throughput: 30}}
	}

	node := actorcore.NewNode(cfg.Node)

	receiver := actor.Spawn(node.Registry, node.Scheduler, node.ID, "pong", pong)

	caller := actor.Spawn(node.Registry, node.Scheduler, node.ID, "ping", func(ctx *actor.Context) *actor.Behavior {
		ctx.Request(receiver.Addr(), 2*time.Second, greeting{Text: "ping"}, func(reply actor.Message) {
			switch r := reply.(type) {
			case greeting:
				fmt.Printf("ping got reply: %s\n", r.Text)
			case actor.SyncTimeoutMsg:
				fmt.Println("ping timed out waiting for pong")
			}
		})
		return actor.NewBehavior()
	})
	_ = caller

	time.Sleep(200 * time.Millisecond)

	transport := wire.NewLoopbackTransport()
	if err := node.EnableNetworking(cfg, transport); err != nil {
		log.Fatalf("enable networking: %v", err)
	}

	if cfg.NSQ.NSQDAddr != "" || len(cfg.NSQ.NSQDAddresses) > 0 {
		if err := node.EnableGroupBackend(cfg.NSQ, "actordemo"); err != nil {
			log.Fatalf("enable group backend: %v", err)
		}
	}
	node.Middleman.RegisterType("main.greeting", func() encoding.BinaryUnmarshaler {
		return &greeting{}
	})

	ctx := context.Background()
	if err := node.Middleman.Publish(ctx, "local", "", 0); err != nil {
		log.Fatalf("publish: %v", err)
	}

	node.Stop(ctx)
}
