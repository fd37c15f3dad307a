// Package factory instantiates pluggable modules, such as metrics sinks, from
// a type name and a map of raw settings taken from configuration.
//
//	reg := factory.NewRegistry[metrics.Sink]()
//	_ = reg.Register("influx", func(conf map[string]any) (metrics.Sink, error) {
//	    var c struct{ URL string `json:"url"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return newInflux(c.URL), nil
//	})
//	sink, err := reg.Create(factory.ModuleConfig{Type: "influx", Conf: raw})
package factory
