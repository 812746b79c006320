package backendstub

import (
	"time"

	"github.com/nhirsama/infra-console/src/inter"
)

// SeedDemoData 写入几条演示资产与读数
func (s *Server) SeedDemoData() {
	now := s.opts.Now()
	assets := []inter.Asset{
		{AssetID: "BRIDGE_001", Name: "Golden Gate Bridge Section A", Type: inter.AssetBridge,
			Description: "Main suspension span", Latitude: 37.8199, Longitude: -122.4783,
			Status: inter.StatusOperational, MaintenancePriority: 3,
			InstallationDate: inter.NewTimestamp(now.AddDate(-8, 0, 0))},
		{AssetID: "ROAD_001", Name: "Highway 101 Segment 12", Type: inter.AssetRoad,
			Latitude: 37.7749, Longitude: -122.4194,
			Status: inter.StatusMaintenanceRequired, MaintenancePriority: 5,
			InstallationDate: inter.NewTimestamp(now.AddDate(-4, 0, 0))},
		{AssetID: "TUNNEL_001", Name: "Caldecott Tunnel Bore 3", Type: inter.AssetTunnel,
			Latitude: 37.8569, Longitude: -122.2019,
			Status: inter.StatusCritical, MaintenancePriority: 9,
			InstallationDate: inter.NewTimestamp(now.AddDate(-12, 0, 0))},
		{AssetID: "BUILDING_001", Name: "Civic Center Annex", Type: inter.AssetBuilding,
			Latitude: 37.7793, Longitude: -122.4193,
			Status: inter.StatusOperational, MaintenancePriority: 2,
			InstallationDate: inter.NewTimestamp(now.AddDate(-1, 0, 0))},
	}
	for _, a := range assets {
		s.data.insertAsset(a)
	}

	for i := 0; i < 6; i++ {
		at := inter.NewTimestamp(now.Add(-time.Duration(i) * 20 * time.Minute))
		s.data.record(inter.SensorReading{AssetID: "BRIDGE_001", SensorID: "TEMP_001",
			SensorType: inter.SensorTemperature, Value: 21.5 + float64(i)*0.4, Unit: "°C", Timestamp: at})
		s.data.record(inter.SensorReading{AssetID: "BRIDGE_001", SensorID: "VIB_001",
			SensorType: inter.SensorVibration, Value: 10.8 + float64(i)*0.3, Unit: "mm/s", Timestamp: at})
	}

	for _, id := range []string{"BRIDGE_001", "TUNNEL_001"} {
		if a, ok := s.data.asset(id); ok {
			p := s.data.addPrediction(id, estimate(a, now))
			s.data.setPriority(id, priorityFor(p.RiskLevel))
		}
	}
}
