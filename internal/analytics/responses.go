package analytics

import "fmt"

// Response bodies shared by the HTTP handler and reportctl.

func (u UsersWithAdoptions) Body() map[string]any {
	if u.NoAdoptions() {
		return map[string]any{
			"message":              "No adopted pets registered",
			"users_with_adoptions": 0,
		}
	}
	return map[string]any{
		"message":            "Users who have adopted at least one pet",
		"total_users":        u.TotalUsers,
		"total_pets_adopted": u.TotalPetsAdopted,
	}
}

func (r FullAdoptionReport) Body() map[string]any {
	if r.NoAdoptions() {
		return map[string]any{"message": "No adoptions registered"}
	}
	return map[string]any{
		"message":       "Combined adoption report",
		"total_records": len(r.Records),
		"adoptions":     nonNil(r.Records),
	}
}

func PetHistoriesBody(histories []PetHistory) map[string]any {
	return map[string]any{
		"message":     fmt.Sprintf("Showing %d pet histories", len(histories)),
		"total_found": len(histories),
		"histories":   nonNil(histories),
	}
}
