package workflows

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/caretqa/api/schemas"
	"github.com/xkilldash9x/caretqa/internal/gateway"
)

// newTestClient wires a workflow client against an httptest server standing in
// for the application API.
func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	session := &schemas.Session{
		Identity:    "qa@example.test",
		BearerToken: "test-token",
		BaseURL:     server.URL,
	}
	gw := gateway.New(server.Client(), zaptest.NewLogger(t))
	return NewClient(gw, session, zaptest.NewLogger(t))
}

func jsonResponse(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

func TestCreatePerson(t *testing.T) {
	t.Run("sends the string-typed form fields", func(t *testing.T) {
		var form map[string]string
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/api2/contact/person", r.URL.Path)
			require.NoError(t, r.ParseForm())
			form = map[string]string{}
			for k := range r.PostForm {
				form[k] = r.PostForm.Get(k)
			}
			jsonResponse(w, http.StatusOK, `{"cont_id": 101, "first_name": "QA", "last_name": "Person", "email": "qa@example.test"}`)
		}))

		contact, err := client.CreatePerson(context.Background(), PersonInput{
			FirstName: "QA", LastName: "Person", Email: "qa@example.test",
		})
		require.NoError(t, err)

		assert.Equal(t, int64(101), contact.ID)
		assert.Equal(t, "false", form["IsCompany"], "booleans travel as literal strings")
		assert.Equal(t, "[]", form["Phones"], "empty collections travel as literal bracket strings")
		assert.Equal(t, "[]", form["Addresses"])
		assert.Equal(t, "[]", form["Tags"])
	})

	t.Run("surfaces API errors as typed errors", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			jsonResponse(w, http.StatusUnprocessableEntity, `{"message": "email already in use"}`)
		}))

		_, err := client.CreatePerson(context.Background(), PersonInput{Email: "dup@example.test"})
		require.Error(t, err)

		var apiErr *gateway.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	})
}

func TestCreateCompany(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api2/contact/company", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "true", r.PostForm.Get("IsCompany"))
		jsonResponse(w, http.StatusOK, `{"cont_id": 55, "company_name": "Acme Legal"}`)
	}))

	contact, err := client.CreateCompany(context.Background(), CompanyInput{CompanyName: "Acme Legal"})
	require.NoError(t, err)
	assert.Equal(t, int64(55), contact.ID)
	assert.Equal(t, "Acme Legal", contact.CompanyName)
}

func TestCreateMatter(t *testing.T) {
	t.Run("accepts the bare integer response", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/api2/Matter/", r.URL.Path)
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "101", r.PostForm.Get("ClientId"))
			jsonResponse(w, http.StatusOK, `7342`)
		}))

		id, err := client.CreateMatter(context.Background(), MatterInput{Name: "Estate of Doe", ClientID: 101})
		require.NoError(t, err)
		assert.Equal(t, int64(7342), id)
	})

	t.Run("rejects a non-positive id", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			jsonResponse(w, http.StatusOK, `0`)
		}))

		_, err := client.CreateMatter(context.Background(), MatterInput{Name: "x", ClientID: 1})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "non-positive id")
	})

	t.Run("rejects an object where a number was expected", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			jsonResponse(w, http.StatusOK, `{"matter_id": 7342}`)
		}))

		_, err := client.CreateMatter(context.Background(), MatterInput{Name: "x", ClientID: 1})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected response shape")
	})
}

func TestDeleteMatter(t *testing.T) {
	t.Run("sends the id in a JSON body and requires literal true", func(t *testing.T) {
		var body map[string]int64
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodDelete, r.Method)
			require.Equal(t, "/api2/DeleteMatter", r.URL.Path)
			require.Equal(t, "application/json", r.Header.Get("Content-Type"))
			raw, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(raw, &body))
			jsonResponse(w, http.StatusOK, `true`)
		}))

		require.NoError(t, client.DeleteMatter(context.Background(), 7342))
		assert.Equal(t, int64(7342), body["MatterId"])
	})

	t.Run("a 200 carrying false is a failure", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			jsonResponse(w, http.StatusOK, `false`)
		}))

		err := client.DeleteMatter(context.Background(), 7342)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reported failure")
	})
}

func TestCreateTimeEntry(t *testing.T) {
	t.Run("extracts tien_id", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/api2/time/", r.URL.Path)
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "7342", r.PostForm.Get("MatterId"))
			assert.Equal(t, "1.5", r.PostForm.Get("Hours"))
			jsonResponse(w, http.StatusOK, `{"tien_id": 88123, "matter_id": 7342}`)
		}))

		id, err := client.CreateTimeEntry(context.Background(), TimeEntryInput{
			MatterID: 7342, Description: "Drafting", Hours: "1.5", Date: "01/15/2026", Rate: "250",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(88123), id)
	})

	t.Run("missing tien_id is an error", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			jsonResponse(w, http.StatusOK, `{"matter_id": 7342}`)
		}))

		_, err := client.CreateTimeEntry(context.Background(), TimeEntryInput{MatterID: 7342})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "tien_id")
	})
}

func TestDeleteTimeEntry(t *testing.T) {
	var gotPath string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))

	require.NoError(t, client.DeleteTimeEntry(context.Background(), 88123))
	assert.Equal(t, "/api2/Time/88123", gotPath)
}

func TestValidateBillNumber(t *testing.T) {
	t.Run("server false means available", func(t *testing.T) {
		var query map[string]string
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/api2/VendorBill/ValidateVendorNo", r.URL.Path)
			query = map[string]string{
				"BillNo":       r.URL.Query().Get("BillNo"),
				"BillVendorId": r.URL.Query().Get("BillVendorId"),
			}
			jsonResponse(w, http.StatusOK, `false`)
		}))

		available, err := client.ValidateBillNumber(context.Background(), "INV-2026-001", 12)
		require.NoError(t, err)
		assert.True(t, available, "server-side false must be inverted to available")
		assert.Equal(t, "INV-2026-001", query["BillNo"])
		assert.Equal(t, "12", query["BillVendorId"])
	})

	t.Run("server true means taken", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			jsonResponse(w, http.StatusOK, `true`)
		}))

		available, err := client.ValidateBillNumber(context.Background(), "INV-2026-001", 12)
		require.NoError(t, err)
		assert.False(t, available)
	})

	t.Run("bill numbers are query-escaped", func(t *testing.T) {
		var rawQuery string
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawQuery = r.URL.RawQuery
			jsonResponse(w, http.StatusOK, `false`)
		}))

		_, err := client.ValidateBillNumber(context.Background(), "INV 2026/001", 12)
		require.NoError(t, err)
		assert.Contains(t, rawQuery, "BillNo=INV+2026%2F001")
	})
}

func TestCreateVendorBill(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api2/vendorbill/", r.URL.Path)
		require.NoError(t, r.ParseForm())

		// The details array travels as a JSON string inside the form payload.
		var details []VendorBillDetail
		require.NoError(t, json.Unmarshal([]byte(r.PostForm.Get("Details")), &details))
		require.Len(t, details, 2)
		assert.Equal(t, "Filing fee", details[0].Description)

		jsonResponse(w, http.StatusOK, `{"vebi_id": 4401}`)
	}))

	id, err := client.CreateVendorBill(context.Background(), VendorBillInput{
		BillNo:   "INV-2026-001",
		VendorID: 12,
		BillDate: "01/15/2026",
		Details: []VendorBillDetail{
			{Description: "Filing fee", Amount: "125.00", ExpenseCode: "FEE"},
			{Description: "Courier", Amount: "18.50", ExpenseCode: "DLV"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4401), id)
}

func TestDeleteVendorBill(t *testing.T) {
	var gotPath string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))

	require.NoError(t, client.DeleteVendorBill(context.Background(), 4401))
	assert.Equal(t, "/api2/VendorBill/4401", gotPath)
}
