package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/astrovoice/kundli/backend/internal/config"
	chatmodel "github.com/astrovoice/kundli/backend/internal/model/chat"
	"github.com/astrovoice/kundli/backend/internal/model/voice"
	"github.com/astrovoice/kundli/backend/internal/voiceclient"
)

// sessiontester drives a live consultation against a running backend:
// create a session over REST, connect the websocket client, send a text or
// audio turn, and print every frame the server pushes back.
func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	baseURL := flag.String("base-url", "http://localhost:8080", "backend base URL")
	userID := flag.String("user", "tester", "user id for the session")
	astrologerID := flag.String("astrologer", "pandit-arjun-sharma", "astrologer id")
	text := flag.String("text", "", "text message to send")
	audioPath := flag.String("audio", "", "recording file to upload")
	wait := flag.Duration("wait", 30*time.Second, "how long to listen for server frames")
	flag.Parse()

	if *text == "" && *audioPath == "" {
		flag.Usage()
		log.Fatal("provide -text or -audio")
	}

	session, err := createSession(*baseURL, *userID, *astrologerID)
	if err != nil {
		log.Fatalf("create session failed: %v", err)
	}
	log.Printf("session created id=%s astrologer=%s", session.ID, session.AstrologerID)

	done := make(chan struct{})
	client := voiceclient.New(voiceclient.Options{
		BaseURL:       *baseURL,
		SessionID:     session.ID,
		ReconnectBase: cfg.Voice.ReconnectBase,
		MaxReconnects: cfg.Voice.MaxReconnects,
		PingInterval:  cfg.Voice.PingInterval,
	})

	ctx, cancel := context.WithTimeout(context.Background(), *wait)
	defer cancel()

	err = client.Connect(ctx, voiceclient.Callbacks{
		OnConnected: func() {
			log.Printf("connected")
		},
		OnDisconnected: func(err error) {
			log.Printf("disconnected: %v", err)
		},
		OnTextResponse: func(text string) {
			fmt.Printf("astrologer: %s\n", text)
		},
		OnAudioResponse: func(audio []byte, format string) {
			path := fmt.Sprintf("reply-%d.%s", time.Now().Unix(), format)
			if err := os.WriteFile(path, audio, 0o600); err != nil {
				log.Printf("failed to save reply audio: %v", err)
				return
			}
			log.Printf("reply audio saved to %s (%d bytes)", path, len(audio))
		},
		OnBalance: func(balance float64, elapsed int64) {
			log.Printf("balance=%.2f elapsed=%ds", balance, elapsed)
		},
		OnPaused: func(reason string) {
			log.Printf("session paused: %s", reason)
		},
		OnError: func(message string) {
			log.Printf("server error: %s", message)
		},
		OnReconnectFailed: func(attempts int) {
			log.Printf("gave up reconnecting after %d attempts", attempts)
			close(done)
		},
	})
	if err != nil {
		log.Fatalf("connect failed: %v", err)
	}
	defer client.Disconnect()

	if *text != "" {
		if err := client.SendText(*text); err != nil {
			log.Fatalf("send text failed: %v", err)
		}
	}
	if *audioPath != "" {
		info, err := os.Stat(*audioPath)
		if err != nil {
			log.Fatalf("audio file: %v", err)
		}
		rec := voice.AudioRecording{Path: *audioPath, SizeBytes: info.Size()}
		if err := client.SendAudio(rec); err != nil {
			log.Fatalf("send audio failed: %v", err)
		}
	}

	select {
	case <-ctx.Done():
	case <-done:
	}
}

func createSession(baseURL, userID, astrologerID string) (*chatmodel.Session, error) {
	payload, err := json.Marshal(map[string]string{
		"userId":       userID,
		"astrologerId": astrologerID,
	})
	if err != nil {
		return nil, err
	}

	resp, err := http.Post(baseURL+"/api/session", "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var session chatmodel.Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, err
	}
	return &session, nil
}
