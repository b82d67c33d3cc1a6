// Command feed-tap subscribes to a running engine's live feed and
// prints the events, for watching a training session from a terminal.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"
)

func main() {
	addr := flag.String("addr", "localhost:8090", "Engine address")
	flag.Parse()

	url := fmt.Sprintf("ws://%s/ws/feed", *addr)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect %s: %v\n", url, err)
		os.Exit(1)
	}
	defer conn.Close()

	fmt.Printf("connected to %s\n", url)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				fmt.Fprintf(os.Stderr, "feed closed: %v\n", err)
				return
			}
			switch msgType {
			case websocket.TextMessage:
				fmt.Println(string(data))
			case websocket.BinaryMessage:
				fmt.Printf("[frame: %d bytes]\n", len(data))
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-done:
	case <-sigChan:
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		<-done
	}
}
