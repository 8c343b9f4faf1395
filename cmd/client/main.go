// The client is a display-only mirror of server quest state. It holds no
// authority: it renders what STATUS_SYNC tells it and asks the server to
// redeem, never deciding readiness itself.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"questline.gg/internal/mirror"
	"questline.gg/internal/protocol"
	"questline.gg/internal/quest"
)

func main() {
	var (
		url       = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		player    = flag.String("player", "", "player id (required)")
		name      = flag.String("name", "", "display name")
		configDir = flag.String("configs", "./configs", "config directory (local catalog copy)")
		resyncS   = flag.Int("resync_s", 0, "request a full sync every N seconds (0 disables)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[client] ", log.LstdFlags)
	if strings.TrimSpace(*player) == "" {
		logger.Fatalf("missing -player")
	}

	cat, err := quest.Load(*configDir, logger)
	if err != nil {
		logger.Fatalf("load local catalog: %v", err)
	}
	ids := make([]string, 0, cat.Len())
	for _, q := range cat.All() {
		ids = append(ids, q.ID)
	}

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		PlayerID:        *player,
		PlayerName:      *name,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	// The mirror lives exactly as long as this connection.
	m := mirror.New(ids)

	// stdin: "redeem <quest_id>" or "sync".
	go readCommands(conn, logger)

	if *resyncS > 0 {
		go func() {
			t := time.NewTicker(time.Duration(*resyncS) * time.Second)
			defer t.Stop()
			for range t.C {
				_ = conn.WriteJSON(protocol.SyncRequestMsg{
					Type:            protocol.TypeSyncRequest,
					ProtocolVersion: protocol.Version,
				})
			}
		}()
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			logger.Printf("disconnected: %v", err)
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Printf("WELCOME session=%s world=%s quests=%d", w.SessionID, w.WorldID, w.QuestCount)
			if w.CatalogDigest != cat.Digest() {
				logger.Printf("WARN local catalog digest differs from server (%s != %s)", cat.Digest(), w.CatalogDigest)
			}
		case protocol.TypeStatusSync:
			var s protocol.StatusSyncMsg
			if err := json.Unmarshal(msg, &s); err != nil {
				continue
			}
			if m.Apply(s.QuestID, quest.Status(s.Status)) {
				render(logger, cat, m, s.QuestID)
			}
		case protocol.TypeAck:
			var a protocol.AckMsg
			if err := json.Unmarshal(msg, &a); err != nil {
				continue
			}
			if !a.Accepted {
				logger.Printf("server refused %s: %s %s", a.AckFor, a.Code, a.Message)
			}
		}
	}
}

func render(logger *log.Logger, cat *quest.Catalog, m *mirror.Mirror, questID string) {
	q, ok := cat.ByID(questID)
	if !ok {
		return
	}
	logger.Printf("%-12s %-24s %s", m.Status(questID), q.Name, q.Description)
}

func readCommands(conn *websocket.Conn, logger *log.Logger) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "redeem":
			if len(fields) != 2 {
				fmt.Println("usage: redeem <quest_id>")
				continue
			}
			_ = conn.WriteJSON(protocol.RedeemRequestMsg{
				Type:            protocol.TypeRedeemRequest,
				ProtocolVersion: protocol.Version,
				QuestID:         fields[1],
			})
		case "sync":
			_ = conn.WriteJSON(protocol.SyncRequestMsg{
				Type:            protocol.TypeSyncRequest,
				ProtocolVersion: protocol.Version,
			})
		default:
			fmt.Println("commands: redeem <quest_id> | sync")
		}
	}
	logger.Printf("stdin closed")
}
