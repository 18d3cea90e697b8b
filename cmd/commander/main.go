// Commander publishes control messages to the d02 controller: the plain-text
// pump tokens on the command topic, and canned condition frames on the data
// topic for dashboard testing. One-shot with -cmd, interactive otherwise.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/AdakHaddad/capdash/internal/config"
	"github.com/AdakHaddad/capdash/internal/mqttconn"
)

// The controller parses these verbatim; there is no structured envelope.
var pumpCommands = map[string]string{
	"POMPA": "irrigation pump on",
	"SEDOT": "suction mode",
}

type condition struct {
	name    string
	message string
}

// Canned sensor conditions for exercising the dashboard avatar states.
var conditions = []condition{
	{"Healthy", "st=25,at=27,sh=70,ah=65,p=825,wl=18,c=1"},
	{"Stressed", "st=28,at=33,sh=48,ah=45,p=820,wl=15,c=2"},
	{"Overheated", "st=32,at=38,sh=60,ah=50,p=815,wl=12,c=3"},
	{"Thirsty", "st=26,at=30,sh=25,ah=55,p=810,wl=10,c=4"},
	{"Critical", "st=35,at=40,sh=20,ah=30,p=800,wl=8,c=5"},
	{"Being watered", "st=24,at=26,sh=85,ah=75,p=830,wl=20,c=6"},
	{"Too cold", "st=10,at=12,sh=65,ah=60,p=825,wl=18,c=7"},
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	oneShot := flag.String("cmd", "", "publish a single pump command (POMPA or SEDOT) and exit")
	flag.Parse()

	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	conn := mqttconn.NewManager(mqttconn.Config{
		Host:      config.BrokerHost(),
		Port:      config.BrokerPort(),
		Transport: config.Transport(),
		WSPath:    config.WebSocketPath(),
		Username:  config.Username(),
		Password:  config.Password(),
		ClientID:  fmt.Sprintf("d02-cmd-%d", time.Now().UnixNano()),
	}, log.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer conn.Disconnect()

	if err := conn.Connect(ctx); err != nil {
		log.Fatal().Err(err).Msg("mqtt connect failed")
	}

	if *oneShot != "" {
		token := strings.ToUpper(*oneShot)
		if _, ok := pumpCommands[token]; !ok {
			log.Fatal().Str("cmd", token).Msg("unknown pump command")
		}
		sendCommand(conn, config.CommandTopic(), token)
		return
	}

	menu(ctx, conn)
}

// Pump tokens go out at QoS 1 so a command is not silently dropped on a
// flaky link; a duplicate delivery is harmless for these toggles.
func sendCommand(conn *mqttconn.Manager, topic, text string) {
	res := conn.Publish(topic, []byte(text), 1)
	if !res.OK {
		log.Error().Err(res.Err).Str("topic", topic).Str("cmd", text).Msg("publish failed")
		return
	}
	log.Info().Str("topic", topic).Str("cmd", text).Uint16("mid", res.MessageID).Msg("command sent")
}

func menu(ctx context.Context, conn *mqttconn.Manager) {
	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Println()
		fmt.Println("Pump commands:")
		fmt.Println("  [p] POMPA (irrigation pump on)")
		fmt.Println("  [s] SEDOT (suction mode)")
		fmt.Println("Test conditions:")
		for i, c := range conditions {
			fmt.Printf("  [%d] %s\n", i+1, c.name)
		}
		fmt.Println("  [q] quit")
		fmt.Print("> ")

		if ctx.Err() != nil || !in.Scan() {
			return
		}
		choice := strings.TrimSpace(strings.ToLower(in.Text()))
		switch choice {
		case "q":
			return
		case "p":
			sendCommand(conn, config.CommandTopic(), "POMPA")
		case "s":
			sendCommand(conn, config.CommandTopic(), "SEDOT")
		default:
			n := 0
			fmt.Sscanf(choice, "%d", &n)
			if n < 1 || n > len(conditions) {
				fmt.Println("unknown choice")
				continue
			}
			sendCommand(conn, config.DataTopic(), conditions[n-1].message)
		}
	}
}
