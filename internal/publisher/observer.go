package publisher

// Observer receives loop events. Calls happen on the loop goroutine, so
// implementations should return quickly.
type Observer interface {
	OnConnect(err error)
	OnDelivery(d Delivery)
	OnFinish(r Report)
}

// Observers fans events out to each element in order.
type Observers []Observer

func (o Observers) OnConnect(err error) {
	for _, obs := range o {
		obs.OnConnect(err)
	}
}

func (o Observers) OnDelivery(d Delivery) {
	for _, obs := range o {
		obs.OnDelivery(d)
	}
}

func (o Observers) OnFinish(r Report) {
	for _, obs := range o {
		obs.OnFinish(r)
	}
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Connect  func(err error)
	Delivery func(d Delivery)
	Finish   func(r Report)
}

func (f ObserverFuncs) OnConnect(err error) {
	if f.Connect != nil {
		f.Connect(err)
	}
}

func (f ObserverFuncs) OnDelivery(d Delivery) {
	if f.Delivery != nil {
		f.Delivery(d)
	}
}

func (f ObserverFuncs) OnFinish(r Report) {
	if f.Finish != nil {
		f.Finish(r)
	}
}
