package dispatcher

import (
	"context"
	"encoding/json"

	"golang.org/x/sync/errgroup"

	"github.com/G-Node/wdat2-sub001/adapter"
	"github.com/G-Node/wdat2-sub001/message"
	"github.com/G-Node/wdat2-sub001/model"
	"github.com/G-Node/wdat2-sub001/network"
)

const notPlotable = "Requested object is not plotable, data can't be fetched."

// getData loads one plotable object and the arrays behind its data file
// fields. Reply data is a JSON object keyed by field name.
func (d *Dispatcher) getData(ctx context.Context, req message.Request) message.Reply {
	reply := message.ReplyTo(req)

	var param DataParam
	if isString(req.Param) {
		if err := req.DecodeParam(&param.URL); err != nil {
			return reply.Fail(err.Error())
		}
	} else if err := req.DecodeParam(&param); err != nil {
		return reply.Fail(err.Error())
	}

	reply = fill(reply, adapter.AdaptFromResource(d.exec.DoGET(ctx, []string{param.URL}, 0)))
	if reply.Error {
		return reply
	}
	if len(reply.Primary) == 0 || !reply.Primary[0].Plotable {
		return reply.Fail(notPlotable)
	}
	obj := reply.Primary[0]

	fields, links := dataLinks(obj)
	responses := make([]network.Response, len(links))

	g, gctx := errgroup.WithContext(ctx)
	for i, link := range links {
		g.Go(func() error {
			responses[i] = d.exec.FetchData(gctx, link, param.Range)
			return nil
		})
	}
	_ = g.Wait()

	arrays := make(map[string]json.RawMessage, len(fields))
	for i, resp := range responses {
		if resp.Error {
			return reply.Fail(resp.Message)
		}
		arrays[fields[i]] = resp.Raw
	}

	data, err := json.Marshal(arrays)
	if err != nil {
		return reply.Fail(err.Error())
	}
	reply.Data = data
	return reply
}

// dataLinks returns the data file fields of obj that carry a link, in
// template order, with their links.
func dataLinks(obj model.Object) ([]string, []string) {
	tmpl, err := model.Lookup(obj.Type)
	if err != nil {
		return nil, nil
	}

	var fields, links []string
	for _, f := range tmpl.Data {
		if f.Kind != model.KindDataFile {
			continue
		}
		value, ok := obj.Data[f.Name].(map[string]any)
		if !ok {
			continue
		}
		if link, ok := value["data"].(string); ok && link != "" {
			fields = append(fields, f.Name)
			links = append(links, link)
		}
	}
	return fields, links
}

func isString(raw []byte) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return b == '"'
	}
	return false
}
