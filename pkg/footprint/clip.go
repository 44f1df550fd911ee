package footprint

import "github.com/paulmach/orb"

// clipRing clips subject against the convex ring c (Sutherland–Hodgman).
// Both rings may be open or closed and of either winding. The closed result
// keeps the winding of subject and is nil when nothing remains.
func clipRing(subject, c orb.Ring) orb.Ring {
	clipper := normalize(c)
	output := openRing(subject.Clone())
	if len(clipper) < 3 || len(output) < 3 {
		return nil
	}

	for i := range clipper {
		a := clipper[i]
		b := clipper[(i+1)%len(clipper)]

		input := output
		output = make(orb.Ring, 0, len(input)+1)
		if len(input) == 0 {
			break
		}

		prev := input[len(input)-1]
		for _, cur := range input {
			curIn := leftOf(a, b, cur)
			prevIn := leftOf(a, b, prev)
			switch {
			case curIn && !prevIn:
				output = append(output, lineIntersection(prev, cur, a, b), cur)
			case curIn:
				output = append(output, cur)
			case prevIn:
				output = append(output, lineIntersection(prev, cur, a, b))
			}
			prev = cur
		}
	}

	if len(output) < 3 {
		return nil
	}
	return append(output, output[0])
}

// normalize returns an open, counter-clockwise copy of r.
func normalize(r orb.Ring) orb.Ring {
	out := r.Clone()
	if len(out) >= 3 && out.Orientation() == orb.CW {
		out.Reverse()
	}
	return openRing(out)
}

func openRing(r orb.Ring) orb.Ring {
	if len(r) > 1 && r[0] == r[len(r)-1] {
		return r[:len(r)-1]
	}
	return r
}

// leftOf reports whether p is on or to the left of the directed edge a->b.
func leftOf(a, b, p orb.Point) bool {
	return (b[0]-a[0])*(p[1]-a[1])-(b[1]-a[1])*(p[0]-a[0]) >= 0
}

// lineIntersection intersects segment p->q with the infinite line through a and b.
func lineIntersection(p, q, a, b orb.Point) orb.Point {
	a1 := b[1] - a[1]
	b1 := a[0] - b[0]
	c1 := a1*a[0] + b1*a[1]

	a2 := q[1] - p[1]
	b2 := p[0] - q[0]
	c2 := a2*p[0] + b2*p[1]

	det := a1*b2 - a2*b1
	if det == 0 {
		return q
	}
	return orb.Point{(b2*c1 - b1*c2) / det, (a1*c2 - a2*c1) / det}
}
