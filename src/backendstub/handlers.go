package backendstub

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/nhirsama/infra-console/src/inter"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
		return
	}
	u, ok := s.data.authenticate(req.Username, req.Password)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
		return
	}
	token, err := s.issuer.Issue(u.Username, u.Role)
	if err != nil {
		log.Printf("签发令牌失败: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"token":    token,
		"username": u.Username,
		"role":     string(u.Role),
		"message":  "Login successful",
	})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	username, role, err := s.issuer.Parse(req.Token)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"valid": false, "message": "Invalid token"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"valid": true, "username": username, "role": role})
}

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, err := strconv.Atoi(r.URL.Query().Get("size"))
	if err != nil || size <= 0 {
		size = 20
	}
	if page < 0 {
		page = 0
	}
	writeJSON(w, http.StatusOK, s.data.page(page, size))
}

func (s *Server) handleCreateAsset(w http.ResponseWriter, r *http.Request) {
	var a inter.Asset
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid asset payload"})
		return
	}
	a.AssetID = strings.TrimSpace(a.AssetID)
	a.Name = strings.TrimSpace(a.Name)
	if a.AssetID == "" || a.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "assetId and name are required"})
		return
	}
	if !a.Type.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Unknown asset type"})
		return
	}
	if a.Status == "" {
		a.Status = inter.StatusOperational
	}
	if a.InstallationDate.IsZero() {
		a.InstallationDate = inter.NewTimestamp(s.opts.Now())
	}
	if a.MaintenancePriority == 0 {
		a.MaintenancePriority = 1
	}
	created, ok := s.data.insertAsset(a)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Asset ID already exists: " + a.AssetID})
		return
	}
	writeJSON(w, http.StatusOK, created)
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	assetID := mux.Vars(r)["assetId"]
	var req struct {
		Status inter.AssetStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.Status.Valid() {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	updated, ok := s.data.setStatus(assetID, req.Status)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.data.stats())
}

// handleRecord 任何解析失败都返回空正文的 400
func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	var req map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	assetID, _ := req["assetId"].(string)
	sensorID, _ := req["sensorId"].(string)
	sensorType, _ := req["sensorType"].(string)
	unit, _ := req["unit"].(string)
	value, err := strconv.ParseFloat(fmt.Sprint(req["value"]), 64)
	if err != nil || assetID == "" || sensorID == "" || !inter.SensorType(sensorType).Valid() {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if _, ok := s.data.asset(assetID); !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	reading := inter.SensorReading{
		AssetID:    assetID,
		SensorID:   sensorID,
		SensorType: inter.SensorType(sensorType),
		Value:      value,
		Unit:       unit,
		Timestamp:  inter.NewTimestamp(s.opts.Now()),
	}
	s.data.record(reading)
	writeJSON(w, http.StatusOK, reading)
}

func (s *Server) handleAggregated(w http.ResponseWriter, r *http.Request) {
	assetID := mux.Vars(r)["assetId"]
	window, ok := parseWindow(r.URL.Query().Get("aggregationWindow"))
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if _, ok := s.data.asset(assetID); !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.data.aggregate(assetID, window))
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	assetID := mux.Vars(r)["assetId"]
	if _, ok := s.data.asset(assetID); !ok {
		writeText(w, http.StatusBadRequest, "Error simulating sensor data: asset not found: "+assetID)
		return
	}
	now := inter.NewTimestamp(s.opts.Now())
	for _, sim := range []struct {
		id    string
		typ   inter.SensorType
		value float64
	}{
		{"TEMP_001", inter.SensorTemperature, 23.5},
		{"VIB_001", inter.SensorVibration, 12.3},
		{"PRESS_001", inter.SensorPressure, 101.3},
	} {
		s.data.record(inter.SensorReading{
			AssetID:    assetID,
			SensorID:   sim.id,
			SensorType: sim.typ,
			Value:      sim.value,
			Unit:       sim.typ.DefaultUnit(),
			Timestamp:  now,
		})
	}
	writeText(w, http.StatusOK, "Simulated sensor data recorded for asset: "+assetID)
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	assetID := mux.Vars(r)["assetId"]
	if _, ok := s.data.asset(assetID); !ok {
		writeText(w, http.StatusBadRequest, "Error triggering prediction: Asset not found: "+assetID)
		return
	}
	s.jobs.Add(1)
	go s.runPrediction(assetID)
	writeText(w, http.StatusOK, "Prediction triggered for asset: "+assetID)
}

// runPrediction 模拟异步预测任务，按资产服役时长估算风险
func (s *Server) runPrediction(assetID string) {
	defer s.jobs.Done()
	if s.opts.PredictionDelay > 0 {
		timer := time.NewTimer(s.opts.PredictionDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-s.stopped:
			return
		}
	}

	asset, ok := s.data.asset(assetID)
	if !ok {
		return
	}
	p := estimate(asset, s.opts.Now())
	p = s.data.addPrediction(assetID, p)
	s.data.setPriority(assetID, priorityFor(p.RiskLevel))
	log.Printf("资产 %s 预测完成: %s", assetID, p.RiskLevel)
	if s.opts.OnPrediction != nil {
		s.opts.OnPrediction(assetID, p)
	}
}

func estimate(asset inter.Asset, now time.Time) inter.Prediction {
	months := 0
	if !asset.InstallationDate.IsZero() {
		months = int(now.Sub(asset.InstallationDate.Time).Hours() / (24 * 30))
	}

	var (
		risk       inter.RiskLevel
		confidence float64
		prob       float64
		horizon    int
	)
	switch {
	case asset.Status == inter.StatusCritical:
		risk, confidence, prob, horizon = inter.RiskCritical, 0.9, 0.92, 1
	case months > 60:
		risk, confidence, prob, horizon = inter.RiskHigh, 0.85, 0.72, 6
	case months > 36:
		risk, confidence, prob, horizon = inter.RiskMedium, 0.75, 0.45, 12
	default:
		risk, confidence, prob, horizon = inter.RiskLow, 0.65, 0.18, 24
	}

	snapshot := asset
	return inter.Prediction{
		Asset:                &snapshot,
		PredictionDate:       inter.NewTimestamp(now),
		PredictedFailureDate: inter.NewTimestamp(now.AddDate(0, horizon, 0)),
		ConfidenceScore:      confidence,
		RiskLevel:            risk,
		FailureProbability:   prob,
		RecommendedAction:    recommendedAction(risk),
		ModelVersion:         "1.0",
		PredictionAlgorithm:  "LSTM",
	}
}

func recommendedAction(risk inter.RiskLevel) string {
	switch risk {
	case inter.RiskCritical:
		return "Immediate maintenance required. Schedule emergency inspection."
	case inter.RiskHigh:
		return "Schedule maintenance within 30 days. Increase monitoring frequency."
	case inter.RiskMedium:
		return "Schedule maintenance within 90 days. Continue regular monitoring."
	default:
		return "Continue regular maintenance schedule. Monitor for changes."
	}
}

func priorityFor(risk inter.RiskLevel) int {
	switch risk {
	case inter.RiskCritical:
		return 10
	case inter.RiskHigh:
		return 8
	case inter.RiskMedium:
		return 5
	case inter.RiskLow:
		return 2
	}
	return 1
}

func (s *Server) handlePredictionsForAsset(w http.ResponseWriter, r *http.Request) {
	assetID := mux.Vars(r)["assetId"]
	if _, ok := s.data.asset(assetID); !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, s.data.predictionsFor(assetID))
}

func (s *Server) handleHighRisk(w http.ResponseWriter, r *http.Request) {
	if s.failHighRisk.Load() {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"status": http.StatusInternalServerError,
			"error":  "Internal Server Error",
		})
		return
	}
	writeJSON(w, http.StatusOK, s.data.highRisk())
}
