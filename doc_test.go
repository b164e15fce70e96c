package tabrec_test

import (
	"context"
	"testing"

	"github.com/rushteam/tabrec"
	"github.com/rushteam/tabrec/artifact"
	"github.com/rushteam/tabrec/model"
	"github.com/rushteam/tabrec/service"
	"github.com/rushteam/tabrec/table"
)

func TestFacade(t *testing.T) {
	items, err := table.New([]string{"id", "title", "genre"}, [][]string{{"1", "A", "x"}, {"2", "B", "x"}})
	if err != nil {
		t.Fatal(err)
	}
	c, err := model.FitContent(context.Background(), items, table.Schema{ItemID: "id", ItemTitle: "title", FeatureCols: []string{"genre"}})
	if err != nil {
		t.Fatal(err)
	}
	var b tabrec.Bundle = &artifact.ContentBundle{Content: c}
	if b.Kind() != tabrec.KindContent {
		t.Fatalf("kind = %s", b.Kind())
	}

	var p tabrec.Predictor = service.NewDispatcher(b)
	title := "A"
	resp := p.Predict(context.Background(), &tabrec.PredictRequest{ItemTitle: &title})
	if resp.Failed() || len(resp.ItemIDs()) != 1 || resp.ItemIDs()[0] != "2" {
		t.Fatalf("resp = %+v", resp)
	}
}
