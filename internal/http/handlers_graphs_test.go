package httpapi

import (
	"net/http"
	"testing"
)

func TestGraphLifecycle(t *testing.T) {
	env := newTestEnv(t)
	coll := env.createCollection(t, env.userToken, "papers")
	env.createDocument(t, env.userToken, "bio", "Ada Lovelace worked with Charles Babbage.", []string{coll.ID})

	resp := env.post(t, "/graphs", env.userToken, map[string]string{
		"collection_id": coll.ID,
		"name":          "kg",
	})
	requireStatus(t, resp, http.StatusOK)
	graph := decodeJSON[graphDTO](t, resp)
	if graph.Status != "pending" {
		t.Fatalf("status: %s", graph.Status)
	}

	t.Run("second graph for collection conflicts", func(t *testing.T) {
		resp := env.post(t, "/graphs", env.userToken, map[string]string{
			"collection_id": coll.ID,
			"name":          "kg2",
		})
		requireStatus(t, resp, http.StatusConflict)
	})

	t.Run("missing fields rejected", func(t *testing.T) {
		resp := env.post(t, "/graphs", env.userToken, map[string]string{"name": "kg"})
		requireStatus(t, resp, http.StatusBadRequest)
	})

	t.Run("unknown collection 404s", func(t *testing.T) {
		resp := env.post(t, "/graphs", env.userToken, map[string]string{
			"collection_id": "nope", "name": "kg",
		})
		requireStatus(t, resp, http.StatusNotFound)
	})

	t.Run("pull extracts entities", func(t *testing.T) {
		resp := env.post(t, "/graphs/"+graph.ID+"/pull", env.userToken, nil)
		requireStatus(t, resp, http.StatusOK)
		pulled := decodeJSON[graphDTO](t, resp)
		if pulled.Status != "built" {
			t.Fatalf("status after pull: %s", pulled.Status)
		}
		if pulled.EntityCount == 0 {
			t.Fatal("expected extracted entities")
		}

		resp = env.get(t, "/graphs/"+graph.ID+"/entities", env.userToken)
		requireStatus(t, resp, http.StatusOK)
		entities := decodeJSON[listResponse[entityDTO]](t, resp)
		var sawAda bool
		for _, e := range entities.Results {
			if e.Name == "Ada Lovelace" {
				sawAda = true
			}
		}
		if !sawAda {
			t.Fatalf("entities: %+v", entities.Results)
		}

		resp = env.get(t, "/graphs/"+graph.ID+"/relationships", env.userToken)
		requireStatus(t, resp, http.StatusOK)
		rels := decodeJSON[listResponse[relationshipDTO]](t, resp)
		if rels.TotalEntries == 0 {
			t.Fatal("expected co-occurrence relationships")
		}
	})

	t.Run("delete", func(t *testing.T) {
		resp := env.delete(t, "/graphs/"+graph.ID, env.userToken)
		requireStatus(t, resp, http.StatusOK)
		resp = env.get(t, "/graphs/"+graph.ID, env.userToken)
		requireStatus(t, resp, http.StatusNotFound)
	})
}
