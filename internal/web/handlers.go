package web

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/five82/tagplayer/internal/feedback"
	"github.com/five82/tagplayer/internal/logtail"
	"github.com/five82/tagplayer/internal/spotify"
)

const (
	defaultLogLines = 100
	maxLogLines     = 1000
)

type statusResponse struct {
	State               string    `json:"state"`
	StateSince          time.Time `json:"state_since"`
	Cue                 string    `json:"cue"`
	Authenticated       bool      `json:"authenticated"`
	DeviceAvailable     bool      `json:"device_available"`
	CurrentDeviceID     string    `json:"current_device_id"`
	CurrentDeviceName   string    `json:"current_device_name"`
	LastURI             string    `json:"last_uri,omitempty"`
	LastError           string    `json:"last_error,omitempty"`
	Playbacks           int       `json:"playbacks"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Failing             bool      `json:"failing"`
}

type devicesResponse struct {
	Devices         []spotify.Device `json:"devices"`
	CurrentDeviceID string           `json:"current_device_id"`
}

type deviceRequest struct {
	DeviceID string `json:"device_id" validate:"required,max=256"`
}

type deviceResponse struct {
	Success    bool   `json:"success"`
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name"`
}

type tagRequest struct {
	URI string `json:"uri" validate:"required,max=2048"`
}

type configRequest struct {
	ClientID     string `json:"client_id" validate:"max=256"`
	ClientSecret string `json:"client_secret" validate:"max=256"`
	DeviceName   string `json:"device_name" validate:"max=256"`
	RefreshToken string `json:"refresh_token" validate:"max=1024"`
}

type configResponse struct {
	Success  bool   `json:"success"`
	Complete bool   `json:"complete"`
	Device   string `json:"device_name"`
	Version  uint64 `json:"version"`
}

type networkResponse struct {
	Connected    bool   `json:"connected"`
	ProbeAddress string `json:"probe_address"`
}

type logsResponse struct {
	Entries []logtail.Entry `json:"entries"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.opts.Store == nil {
		respondError(w, http.StatusServiceUnavailable, "status unavailable")
		return
	}
	snap := s.opts.Store.Snapshot()
	resp := statusResponse{
		State:               snap.State,
		StateSince:          snap.StateSince,
		Cue:                 snap.LastCue,
		Authenticated:       snap.Authenticated,
		DeviceAvailable:     snap.DeviceAvailable,
		CurrentDeviceID:     snap.DeviceID,
		CurrentDeviceName:   snap.DeviceName,
		LastURI:             snap.LastURI,
		Playbacks:           snap.Playbacks,
		ConsecutiveFailures: snap.ConsecutiveFailures,
		Failing:             snap.IsFailing(),
	}
	if snap.LastError != nil {
		resp.LastError = snap.LastError.Error()
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	var (
		devices []spotify.Device
		out     spotify.Outcome
		current string
	)
	err := s.opts.Loop.Do(r.Context(), func(ctx context.Context, c *spotify.Client) {
		devices, out = c.Devices(ctx)
		current = c.DeviceID()
	})
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if !out.Success() {
		respondError(w, http.StatusBadGateway, "device list failed: status "+strconv.Itoa(out.Status))
		return
	}
	if devices == nil {
		devices = []spotify.Device{}
	}
	if s.opts.Store != nil {
		s.opts.Store.SetDevices(devices)
	}
	respondJSON(w, http.StatusOK, devicesResponse{Devices: devices, CurrentDeviceID: current})
}

func (s *Server) handleSetDevice(w http.ResponseWriter, r *http.Request) {
	var req deviceRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var (
		ok   bool
		name string
	)
	err := s.opts.Loop.Do(r.Context(), func(ctx context.Context, c *spotify.Client) {
		ok = c.SetDeviceByID(ctx, req.DeviceID)
		name = c.DeviceName()
	})
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "Device not found or unavailable")
		return
	}
	s.opts.Sink.Show(feedback.CueDeviceSelected)
	respondJSON(w, http.StatusOK, deviceResponse{Success: true, DeviceID: req.DeviceID, DeviceName: name})
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	var ok bool
	err := s.opts.Loop.Do(r.Context(), func(ctx context.Context, c *spotify.Client) {
		ok = c.NextTrack(ctx)
	})
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if !ok {
		respondError(w, http.StatusBadGateway, "skip failed")
		return
	}
	respondJSON(w, http.StatusOK, successResponse{Success: true})
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, successResponse{Success: true, Message: "Device restarting"})
	s.opts.Loop.RequestRestart()
}

func (s *Server) handleTag(w http.ResponseWriter, r *http.Request) {
	if s.opts.Tags == nil {
		respondError(w, http.StatusServiceUnavailable, "tag input unavailable")
		return
	}
	var req tagRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.opts.Tags.Inject(req.URI)
	respondJSON(w, http.StatusAccepted, successResponse{Success: true, Message: "tag queued"})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if s.opts.Credentials == nil {
		respondError(w, http.StatusServiceUnavailable, "settings unavailable")
		return
	}
	var req configRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	update := spotify.Credentials{
		ClientID:     strings.TrimSpace(req.ClientID),
		ClientSecret: strings.TrimSpace(req.ClientSecret),
		DeviceName:   strings.TrimSpace(req.DeviceName),
		RefreshToken: strings.TrimSpace(req.RefreshToken),
	}
	if update == (spotify.Credentials{}) {
		respondError(w, http.StatusBadRequest, "no fields to update")
		return
	}

	next, err := s.opts.Credentials.Apply(update)
	if err != nil {
		s.logger.Error().Err(err).Msg("save credentials")
		respondError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}
	_, version := s.opts.Credentials.Current()
	respondJSON(w, http.StatusOK, configResponse{
		Success:  true,
		Complete: next.Valid(),
		Device:   next.DeviceName,
		Version:  version,
	})
}

func (s *Server) handleClearConfig(w http.ResponseWriter, r *http.Request) {
	if s.opts.Credentials == nil {
		respondError(w, http.StatusServiceUnavailable, "settings unavailable")
		return
	}
	if err := s.opts.Credentials.Clear(); err != nil {
		s.logger.Error().Err(err).Msg("clear credentials")
		respondError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}
	_, version := s.opts.Credentials.Current()
	respondJSON(w, http.StatusOK, configResponse{Success: true, Version: version})
}

func (s *Server) handleNetwork(w http.ResponseWriter, r *http.Request) {
	if s.opts.Network == nil {
		respondError(w, http.StatusServiceUnavailable, "network status unavailable")
		return
	}
	respondJSON(w, http.StatusOK, networkResponse{
		Connected:    s.opts.Network.Last(),
		ProbeAddress: s.opts.Network.Address(),
	})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.opts.LogFile == "" {
		respondError(w, http.StatusNotFound, "file logging disabled")
		return
	}
	lines := defaultLogLines
	if raw := r.URL.Query().Get("lines"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "lines must be a positive integer")
			return
		}
		lines = min(n, maxLogLines)
	}
	entries, err := logtail.Tail(s.opts.LogFile, lines, r.URL.Query().Get("level"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if entries == nil {
		entries = []logtail.Entry{}
	}
	respondJSON(w, http.StatusOK, logsResponse{Entries: entries})
}
