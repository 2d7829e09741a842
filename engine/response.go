package engine

import (
	"encoding/json"
	"time"

	"github.com/Felmond13/novusgraph/sql"
)

// Response est le résultat d'une instruction du lot.
type Response struct {
	SQL    string // texte de l'instruction, renseigné en mode debug
	Time   time.Duration
	Result sql.Value
	Err    error
}

// Status retourne "OK" ou "ERR".
func (r Response) Status() string {
	if r.Err != nil {
		return "ERR"
	}
	return "OK"
}

// Output retourne la valeur ou l'erreur de la réponse.
func (r Response) Output() (sql.Value, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	return r.Result, nil
}

func (r Response) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"time":   r.Time.String(),
		"status": r.Status(),
	}
	if r.SQL != "" {
		out["sql"] = r.SQL
	}
	if r.Err != nil {
		out["detail"] = r.Err.Error()
	} else {
		out["result"] = sql.ToJSON(r.Result)
	}
	return json.Marshal(out)
}
