package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/ENGR161-Team1/MARCO/internal/config"
	"github.com/ENGR161-Team1/MARCO/internal/follow"
	"github.com/ENGR161-Team1/MARCO/internal/nav"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// telemetryCache keeps the latest message per topic for late-joining
// HTTP and websocket clients.
type telemetryCache struct {
	mu         sync.RWMutex
	pose       nav.Snapshot
	havePose   bool
	status     follow.Outcome
	haveStatus bool
}

func (c *telemetryCache) setPose(s nav.Snapshot) {
	c.mu.Lock()
	c.pose = s
	c.havePose = true
	c.mu.Unlock()
}

func (c *telemetryCache) setStatus(o follow.Outcome) {
	c.mu.Lock()
	c.status = o
	c.haveStatus = true
	c.mu.Unlock()
}

// RunWeb serves the dashboard: latest pose and run status over JSON and a
// websocket pose stream, fed from the MQTT telemetry topics.
func RunWeb() error {
	cfg := config.Get()
	cache := &telemetryCache{}

	// 1) Connect to MQTT broker on the Pi
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("connected to MQTT broker at %s", cfg.MQTTBroker)

	// 2) Subscribe to telemetry and update the cache on each message
	poseToken := client.Subscribe(cfg.TopicPose, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s nav.Snapshot
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("MQTT payload unmarshal error (pose): %v", err)
			return
		}
		cache.setPose(s)
	})
	poseToken.Wait()
	if poseToken.Error() != nil {
		return poseToken.Error()
	}
	log.Printf("subscribed to MQTT topic %s", cfg.TopicPose)

	statusToken := client.Subscribe(cfg.TopicStatus, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var o follow.Outcome
		if err := json.Unmarshal(msg.Payload(), &o); err != nil {
			log.Printf("MQTT payload unmarshal error (status): %v", err)
			return
		}
		cache.setStatus(o)
	})
	statusToken.Wait()
	if statusToken.Error() != nil {
		return statusToken.Error()
	}
	log.Printf("subscribed to MQTT topic %s", cfg.TopicStatus)

	// 3) JSON API endpoints: latest pose and run status
	http.HandleFunc("/api/pose", func(w http.ResponseWriter, r *http.Request) {
		cache.mu.RLock()
		defer cache.mu.RUnlock()

		if !cache.havePose {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(cache.pose); err != nil {
			log.Printf("json encode error: %v", err)
		}
	})

	http.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		cache.mu.RLock()
		defer cache.mu.RUnlock()

		if !cache.haveStatus {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(cache.status); err != nil {
			log.Printf("json encode error: %v", err)
		}
	})

	// 4) Websocket pose stream for the live dashboard
	http.HandleFunc("/ws/pose", func(w http.ResponseWriter, r *http.Request) {
		handlePoseWS(w, r, cache)
	})

	// 5) Static files from ./web as the root
	fs := http.FileServer(http.Dir("web"))
	http.Handle("/", fs)

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web server listening on %s", addr)
	return http.ListenAndServe(addr, nil)
}

// handlePoseWS pushes the cached pose to one websocket client at a fixed
// rate until the client goes away.
func handlePoseWS(w http.ResponseWriter, r *http.Request, cache *telemetryCache) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		cache.mu.RLock()
		have := cache.havePose
		pose := cache.pose
		cache.mu.RUnlock()
		if !have {
			continue
		}
		if err := conn.WriteJSON(pose); err != nil {
			log.Printf("websocket write error, closing: %v", err)
			return
		}
	}
}
