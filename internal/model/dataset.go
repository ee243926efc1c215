package model

// Dataset holds every record of one fetch session in page-arrival order.
// Duplicates and out-of-order dates pass through untouched.
type Dataset struct {
	Query   Query
	Records []Record
	Pages   int // pages that returned records
}

func NewDataset(q Query) *Dataset {
	return &Dataset{Query: q}
}

func (d *Dataset) Append(records ...Record) {
	d.Records = append(d.Records, records...)
}

func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

func (d *Dataset) Empty() bool { return d.Len() == 0 }

// Candles converts records to candles, skipping rows with an unparseable date
// or missing prices. skipped counts the dropped rows.
func (d *Dataset) Candles(fields FieldMap) (candles []Candle, skipped int) {
	if d == nil {
		return nil, 0
	}
	candles = make([]Candle, 0, len(d.Records))
	for _, r := range d.Records {
		c, err := r.Candle(fields)
		if err != nil || c.Date.IsZero() {
			skipped++
			continue
		}
		candles = append(candles, c)
	}
	return candles, skipped
}
