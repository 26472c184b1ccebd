package availability

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"clinic-session-backend/internal/model"
)

func plugDevice(online, relayOn bool) *model.SmartPlugDevice {
	return &model.SmartPlugDevice{
		ID:       "plug-1",
		DeviceID: "shelly-1",
		Name:     "Plug 1",
		Online:   online,
		RelayOn:  relayOn,
	}
}

func TestClassifyAssignment(t *testing.T) {
	testCases := []struct {
		name          string
		plug          *model.SmartPlugDevice
		wantStatus    Status
		wantAvailable bool
	}{
		{
			name:          "no telemetry device bound is optimistically available",
			plug:          nil,
			wantStatus:    StatusNoSmartPlug,
			wantAvailable: true,
		},
		{
			name:          "offline device",
			plug:          plugDevice(false, false),
			wantStatus:    StatusOffline,
			wantAvailable: false,
		},
		{
			name:          "offline device with stale relay reading",
			plug:          plugDevice(false, true),
			wantStatus:    StatusOffline,
			wantAvailable: false,
		},
		{
			name:          "online with relay on is occupied",
			plug:          plugDevice(true, true),
			wantStatus:    StatusOccupied,
			wantAvailable: false,
		},
		{
			name:          "online with relay off is available",
			plug:          plugDevice(true, false),
			wantStatus:    StatusAvailable,
			wantAvailable: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assignment := model.EquipmentClinicAssignment{
				ID:              "assign-1",
				EquipmentID:     "equip-1",
				ClinicID:        "clinic-1",
				SerialNumber:    "SN-0042",
				IsActive:        true,
				Equipment:       model.Equipment{ID: "equip-1", Name: "Pressotherapy"},
				SmartPlugDevice: tc.plug,
			}

			candidate := ClassifyAssignment(assignment)

			assert.Equal(t, tc.wantStatus, candidate.Status)
			assert.Equal(t, tc.wantAvailable, candidate.IsAvailable)
			assert.Equal(t, "assign-1", candidate.AssignmentID)
			assert.Equal(t, "Pressotherapy", candidate.EquipmentName)
			if tc.plug != nil {
				assert.NotNil(t, candidate.SmartPlug)
				assert.Equal(t, tc.plug.Online, candidate.SmartPlug.Online)
				assert.Equal(t, tc.plug.RelayOn, candidate.SmartPlug.RelayOn)
			} else {
				assert.Nil(t, candidate.SmartPlug)
			}
		})
	}
}

func TestClassifyAssignmentLabel(t *testing.T) {
	assignment := model.EquipmentClinicAssignment{
		ID:           "assign-1",
		SerialNumber: "SN-0042",
		Equipment:    model.Equipment{Name: "Pressotherapy"},
	}
	assert.Equal(t, "Pressotherapy #042", ClassifyAssignment(assignment).DeviceName)

	assignment.DeviceName = "Presso Cabin 2"
	assert.Equal(t, "Presso Cabin 2", ClassifyAssignment(assignment).DeviceName)
}

func TestClassifyScopesToAppointmentClinic(t *testing.T) {
	appointment := &model.Appointment{
		ID:       "appt-1",
		ClinicID: "clinic-1",
		Clinic:   model.Clinic{ID: "clinic-1", Name: "Central"},
		Services: []model.AppointmentService{
			{
				Service: model.Service{
					ID:   "svc-1",
					Name: "Presso 45",
					EquipmentRequirements: []model.ServiceEquipmentRequirement{
						{
							ServiceID:   "svc-1",
							EquipmentID: "equip-1",
							Equipment: model.Equipment{
								ID:   "equip-1",
								Name: "Pressotherapy",
								ClinicAssignments: []model.EquipmentClinicAssignment{
									{ID: "assign-here", ClinicID: "clinic-1", IsActive: true, SerialNumber: "SN-001"},
									{ID: "assign-elsewhere", ClinicID: "clinic-2", IsActive: true, SerialNumber: "SN-002"},
									{ID: "assign-inactive", ClinicID: "clinic-1", IsActive: false, SerialNumber: "SN-003"},
								},
							},
						},
					},
				},
			},
		},
	}

	candidates := Classify(appointment)

	assert.Len(t, candidates, 1)
	assert.Equal(t, "assign-here", candidates[0].AssignmentID)
	assert.Equal(t, "svc-1", candidates[0].ServiceID)
	assert.Equal(t, "Presso 45", candidates[0].ServiceName)
	assert.Equal(t, "Central", candidates[0].ClinicName)
	// Equipment ref must survive into the bindable assignment.
	assert.Equal(t, "Pressotherapy", candidates[0].Assignment.Equipment.Name)
}

func TestClassifyNoRequirements(t *testing.T) {
	appointment := &model.Appointment{
		ID:       "appt-1",
		ClinicID: "clinic-1",
		Services: []model.AppointmentService{
			{Service: model.Service{ID: "svc-1", Name: "Consultation"}},
		},
	}

	assert.Empty(t, Classify(appointment))
}
