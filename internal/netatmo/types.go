package netatmo

// HomesData is the body of a homesdata response.
type HomesData struct {
	Homes []Home `json:"homes"`
	User  *User  `json:"user,omitempty"`
}

// HomeByID returns the home with the given id.
func (d *HomesData) HomeByID(id string) (*Home, bool) {
	if d == nil {
		return nil, false
	}

	for i := range d.Homes {
		if d.Homes[i].ID == id {
			return &d.Homes[i], true
		}
	}

	return nil, false
}

// Home is a Netatmo home with its rooms, modules and heating schedules.
type Home struct {
	ID                           string     `json:"id"`
	Name                         string     `json:"name"`
	Altitude                     int        `json:"altitude,omitempty"`
	Coordinates                  []float64  `json:"coordinates,omitempty"`
	Country                      string     `json:"country,omitempty"`
	Timezone                     string     `json:"timezone,omitempty"`
	Rooms                        []Room     `json:"rooms,omitempty"`
	Modules                      []Module   `json:"modules,omitempty"`
	Schedules                    []Schedule `json:"schedules,omitempty"`
	ThermMode                    string     `json:"therm_mode,omitempty"`
	ThermSetpointDefaultDuration int        `json:"therm_setpoint_default_duration,omitempty"`
}

// SelectedSchedule returns the schedule currently marked selected, if any.
func (h *Home) SelectedSchedule() (*Schedule, bool) {
	for i := range h.Schedules {
		if h.Schedules[i].Selected {
			return &h.Schedules[i], true
		}
	}

	return nil, false
}

// ScheduleByID finds a schedule by its effective identifier.
func (h *Home) ScheduleByID(id string) (*Schedule, bool) {
	for i := range h.Schedules {
		if h.Schedules[i].EffectiveID() == id {
			return &h.Schedules[i], true
		}
	}

	return nil, false
}

type Room struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Type      string   `json:"type,omitempty"`
	ModuleIDs []string `json:"module_ids,omitempty"`
}

type Module struct {
	ID             string   `json:"id"`
	Type           string   `json:"type"`
	Name           string   `json:"name,omitempty"`
	SetupDate      int64    `json:"setup_date,omitempty"`
	RoomID         string   `json:"room_id,omitempty"`
	Bridge         string   `json:"bridge,omitempty"`
	ModulesBridged []string `json:"modules_bridged,omitempty"`
}

// Schedule is a heating schedule. The API identifies a schedule either by
// "id" or by "schedule_id" depending on the endpoint; both are kept.
type Schedule struct {
	ID         string           `json:"id,omitempty"`
	ScheduleID string           `json:"schedule_id,omitempty"`
	Name       string           `json:"name"`
	Type       string           `json:"type,omitempty"`
	Default    bool             `json:"default,omitempty"`
	Selected   bool             `json:"selected,omitempty"`
	HGTemp     float64          `json:"hg_temp,omitempty"`
	AwayTemp   float64          `json:"away_temp,omitempty"`
	Zones      []Zone           `json:"zones,omitempty"`
	Timetable  []TimetableEntry `json:"timetable,omitempty"`
}

// EffectiveID returns ID when present, otherwise ScheduleID. It is empty
// only when both are empty.
func (s Schedule) EffectiveID() string {
	if s.ID != "" {
		return s.ID
	}

	return s.ScheduleID
}

// Zone is a named set of room setpoints referenced by the timetable.
type Zone struct {
	ID    int        `json:"id"`
	Name  string     `json:"name,omitempty"`
	Type  int        `json:"type"`
	Rooms []ZoneRoom `json:"rooms,omitempty"`
}

type ZoneRoom struct {
	ID                       string  `json:"id"`
	ThermSetpointTemperature float64 `json:"therm_setpoint_temperature"`
}

// TimetableEntry activates ZoneID at MOffset minutes after Monday 00:00.
type TimetableEntry struct {
	ZoneID  int `json:"zone_id"`
	MOffset int `json:"m_offset"`
}

type User struct {
	Email        string `json:"email,omitempty"`
	Language     string `json:"language,omitempty"`
	Locale       string `json:"locale,omitempty"`
	UnitSystem   int    `json:"unit_system,omitempty"`
	UnitPressure int    `json:"unit_pressure,omitempty"`
	UnitWind     int    `json:"unit_wind,omitempty"`
	ID           string `json:"id,omitempty"`
}
